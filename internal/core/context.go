package core

import "context"

type contextKey string

const (
	ctxKeyIPAddress contextKey = "ingest_ip"
	ctxKeyUserAgent contextKey = "ingest_ua"
	ctxKeyActor     contextKey = "ingest_actor"
)

// ContextWithIPAddress adds the caller's IP address for ingestion history.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// ContextWithUserAgent adds the caller's User-Agent for ingestion history.
func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

// ContextWithActor adds the authenticated caller's name.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actor)
}

// IPAddressFromContext returns the IP stored by ContextWithIPAddress.
func IPAddressFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyIPAddress).(string)
	return v
}

// UserAgentFromContext returns the User-Agent stored by ContextWithUserAgent.
func UserAgentFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUserAgent).(string)
	return v
}

// ActorFromContext returns the caller name stored by ContextWithActor.
func ActorFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyActor).(string)
	return v
}
