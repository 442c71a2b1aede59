// Package requesttrace carries who-did-what metadata through a request so
// services can stamp created_by columns and logs can name the actor.
package requesttrace

import (
	"context"
	"errors"

	platformauth "github.com/zenGate-Global/estatedesk/platform/go/auth"
)

type contextKey string

const ctxAuditInfo contextKey = "ESTATEDESK_REQUEST_TRACE"

// ActorKind represents who initiated a request.
type ActorKind string

const (
	ActorKindUser      ActorKind = "user"
	ActorKindAnonymous ActorKind = "anonymous"
	ActorKindSystem    ActorKind = "system"
)

// AuditInfo captures request-scoped metadata. UserID is set only for ActorKindUser.
type AuditInfo struct {
	ActorKind ActorKind
	UserID    string
	RequestID string
}

// Actor is the value written to created_by columns: the user id, or the actor kind otherwise.
func (a AuditInfo) Actor() string {
	if a.ActorKind == ActorKindUser && a.UserID != "" {
		return a.UserID
	}
	if a.ActorKind == "" {
		return string(ActorKindAnonymous)
	}
	return string(a.ActorKind)
}

// IntoContext stores the AuditInfo in the provided context.
func IntoContext(ctx context.Context, audit AuditInfo) context.Context {
	return context.WithValue(ctx, ctxAuditInfo, audit)
}

// FromContext extracts the AuditInfo from context, returning false when not present.
func FromContext(ctx context.Context) (AuditInfo, bool) {
	if ctx == nil {
		return AuditInfo{}, false
	}
	audit, ok := ctx.Value(ctxAuditInfo).(AuditInfo)
	return audit, ok
}

// FromContextOrAnonymous returns the AuditInfo stored on the context, or an anonymous record when absent.
func FromContextOrAnonymous(ctx context.Context) AuditInfo {
	if audit, ok := FromContext(ctx); ok {
		return audit
	}
	return Anonymous("")
}

// FromCredentials builds an AuditInfo from authenticated credentials.
func FromCredentials(creds *platformauth.UserCredentials, requestID string) (AuditInfo, error) {
	if creds == nil {
		return AuditInfo{}, errors.New("credentials are required to build audit info")
	}
	if creds.ID == "" {
		return AuditInfo{}, errors.New("user id is required to build audit info")
	}

	return AuditInfo{ActorKind: ActorKindUser, UserID: creds.ID, RequestID: requestID}, nil
}

// Anonymous builds an AuditInfo for unauthenticated requests such as public property pages.
func Anonymous(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindAnonymous, RequestID: requestID}
}

// System builds an AuditInfo for CLI maintenance commands.
func System(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindSystem, RequestID: requestID}
}
