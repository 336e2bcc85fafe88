package portalAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/portalAuth/session"
	"github.com/MrEthical07/portalAuth/transport"
)

const (
	auditEventLoginSuccess      = "login_success"
	auditEventLoginFailure      = "login_failure"
	auditEventRefreshSuccess    = "refresh_success"
	auditEventRefreshFailure    = "refresh_failure"
	auditEventRefreshThrottled  = "refresh_throttled"
	auditEventProactiveRefresh  = "refresh_proactive"
	auditEventLogout            = "logout"
	auditEventForcedLogout      = "forced_logout"
	auditEventStartupVerified   = "startup_verified"
	auditEventStartupOffline    = "startup_offline"
	auditEventStartupRejected   = "startup_rejected"
	auditEventProfileRefresh    = "profile_refresh"
	auditEventUserUpdatedLocal  = "user_updated_local"
	auditEventDeviceIDGenerated = "device_id_generated"
)

// AuditErrorCode is the coarse error class recorded on failed events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRejected           AuditErrorCode = "rejected"
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrForbidden          AuditErrorCode = "forbidden"
	auditErrThrottled          AuditErrorCode = "throttled"
	auditErrNetwork            AuditErrorCode = "network"
	auditErrServer             AuditErrorCode = "server_error"
	auditErrNoDevice           AuditErrorCode = "no_device_id"
	auditErrMalformed          AuditErrorCode = "malformed_response"
	auditErrStorage            AuditErrorCode = "storage"
	auditErrCanceled           AuditErrorCode = "canceled"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	user *session.UserProfile,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Success:   success,
		Metadata:  metadata,
	}
	if user != nil {
		event.UserID = user.ID
		event.Role = string(user.Role)
	}
	if id, ok := e.device.Current(ctx); ok {
		event.DeviceID = id
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrRefreshThrottled):
		return auditErrThrottled
	case errors.Is(err, ErrNoDeviceID):
		return auditErrNoDevice
	case errors.Is(err, ErrMalformedResponse):
		return auditErrMalformed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return auditErrCanceled
	case errors.Is(err, ErrNetwork):
		return auditErrNetwork
	case errors.Is(err, ErrStorage):
		return auditErrStorage
	case transport.StatusCode(err) == 401:
		return auditErrUnauthorized
	case transport.StatusCode(err) == 403:
		return auditErrForbidden
	case transport.IsServerError(err):
		return auditErrServer
	case errors.Is(err, ErrAuth):
		return auditErrRejected
	default:
		return auditErrInternal
	}
}
