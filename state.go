package trafficlight

import "context"

type phaseKeyType string

const phaseKey phaseKeyType = "phase"

type crossingKeyType string

const crossingKey crossingKeyType = "crossing"

func withPhase(ctx context.Context, p Phase) context.Context {
	return context.WithValue(ctx, phaseKey, p)
}

// phaseFromContext returns the phase a hook was triggered by.
func phaseFromContext(ctx context.Context) Phase {
	if p, ok := ctx.Value(phaseKey).(Phase); ok {
		return p
	}
	return PhaseNone
}

func withCrossing(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, crossingKey, name)
}

func crossingFromContext(ctx context.Context) string {
	name, _ := ctx.Value(crossingKey).(string)
	return name
}

type notificationKeyType string

const notificationKey notificationKeyType = "notification"

func withNotification(ctx context.Context, n Notification) context.Context {
	return context.WithValue(ctx, notificationKey, n)
}

// notificationFromContext returns the notification stamped by Crossing.Cross,
// or one built from the phase and crossing found in ctx.
func notificationFromContext(ctx context.Context) Notification {
	if n, ok := ctx.Value(notificationKey).(Notification); ok {
		return n
	}
	return Notification{
		Phase:    phaseFromContext(ctx),
		Crossing: crossingFromContext(ctx),
	}
}
