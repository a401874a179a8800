// Package mongo opens MongoDB clients from environment driven configuration.
//
// It is the connection layer behind the mongostore notification backend.
// New pings the server before returning and retries a fixed number of times,
// so a process started alongside its database does not crash on the first
// refused connection.
//
// # Usage
//
//	cfg := mongo.Config{ConnectionURL: "mongodb://localhost:27017", Database: "notifyq"}
//
//	db, err := mongo.NewWithDatabase(ctx, cfg, "")
//	if err != nil {
//		return err
//	}
//	defer db.Client().Disconnect(context.Background())
//
//	ready := mongo.Healthcheck(db.Client())
//
// Connection failures wrap ErrFailedToConnectToMongo together with the last
// driver error, so both errors.Is and the underlying message survive.
package mongo
