package logger

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Attribute keys shared by every component, so log queries can rely on them.
const (
	KeyError          = "error"
	KeyErrors         = "errors"
	KeyService        = "service"
	KeyComponent      = "component"
	KeyTenantID       = "tenant_id"
	KeyUserID         = "user_id"
	KeyNotificationID = "notification_id"
	KeyRequestID      = "request_id"
	KeyWorkerID       = "worker_id"
	KeyChannel        = "channel"
	KeyStatus         = "status"
	KeyAttempts       = "attempts"
	KeyDuration       = "duration"
)

// Group nests attrs under name.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error is an empty Attr for a nil err, so it can be passed unconditionally.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any(KeyError, err)
}

// Errors groups the non-nil errs by their position in the argument list.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return Group(KeyErrors, as...)
}

// Identifier attrs accept a uuid.UUID, a *uuid.UUID or any other value.
// Nil values and uuid.Nil yield an empty Attr.

func TenantID(id any) slog.Attr { return idAttr(KeyTenantID, id) }
func UserID(id any) slog.Attr { return idAttr(KeyUserID, id) }
func NotificationID(id any) slog.Attr { return idAttr(KeyNotificationID, id) }
func RequestID(id any) slog.Attr { return idAttr(KeyRequestID, id) }

func idAttr(key string, id any) slog.Attr {
	switch v := id.(type) {
	case nil:
		return slog.Attr{}
	case uuid.UUID:
		if v == uuid.Nil {
			return slog.Attr{}
		}
		return slog.String(key, v.String())
	case *uuid.UUID:
		if v == nil || *v == uuid.Nil {
			return slog.Attr{}
		}
		return slog.String(key, v.String())
	case string:
		if v == "" {
			return slog.Attr{}
		}
		return slog.String(key, v)
	}
	return slog.Any(key, id)
}

func Service(name string) slog.Attr { return slog.String(KeyService, name) }
func Component(name string) slog.Attr { return slog.String(KeyComponent, name) }
func WorkerID(id string) slog.Attr { return slog.String(KeyWorkerID, id) }
func Channel(name string) slog.Attr { return slog.String(KeyChannel, name) }
func Status(name string) slog.Attr { return slog.String(KeyStatus, name) }
func Attempts(n int) slog.Attr { return slog.Int(KeyAttempts, n) }

func Duration(d time.Duration) slog.Attr { return slog.Duration(KeyDuration, d) }
