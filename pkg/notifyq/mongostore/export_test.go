package mongostore

// Unclaim exposes the partial claim release to the external tests.
var Unclaim = (*Store).unclaim
