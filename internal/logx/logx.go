package logx

import (
	"context"

	"pkt.systems/joblog/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	jobKey contextKey = iota
	viewerKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithJob annotates the logger with the job id if present.
func WithJob(ctx context.Context, jobID schema.JobID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if jobID != "" {
		if current, ok := ctx.Value(jobKey).(schema.JobID); ok && current == jobID {
			return log
		}
		log = log.With("job", string(jobID))
	}
	return log
}

// WithJobViewer annotates the logger with job and viewer identifiers.
func WithJobViewer(ctx context.Context, jobID schema.JobID, viewerID string) pslog.Logger {
	log := WithJob(ctx, jobID)
	if viewerID != "" {
		if current, ok := ctx.Value(viewerKey).(string); ok && current == viewerID {
			return log
		}
		log = log.With("viewer", viewerID)
	}
	return log
}

// WithCommand annotates the logger with command position and directive.
func WithCommand(log pslog.Logger, index int, directive string) pslog.Logger {
	if index >= 0 {
		log = log.With("command", index)
	}
	if directive != "" {
		log = log.With("directive", directive)
	}
	return log
}

// WithProfile annotates the logger with a display profile when set.
func WithProfile(log pslog.Logger, profile string) pslog.Logger {
	if profile != "" {
		log = log.With("profile", profile)
	}
	return log
}

// ContextWithJob stores the job marker on the context for log de-duplication.
func ContextWithJob(ctx context.Context, jobID schema.JobID) context.Context {
	if ctx == nil || jobID == "" {
		return ctx
	}
	return context.WithValue(ctx, jobKey, jobID)
}

// ContextWithViewer stores the viewer marker on the context for log de-duplication.
func ContextWithViewer(ctx context.Context, viewerID string) context.Context {
	if ctx == nil || viewerID == "" {
		return ctx
	}
	return context.WithValue(ctx, viewerKey, viewerID)
}

// ContextWithJobLogger attaches the logger and job marker to the context.
func ContextWithJobLogger(ctx context.Context, log pslog.Logger, jobID schema.JobID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithJob(ctx, jobID)
}

// CopyContextFields copies job/viewer markers from src to dst.
func CopyContextFields(dst context.Context, src context.Context) context.Context {
	if src == nil {
		return dst
	}
	if job, ok := src.Value(jobKey).(schema.JobID); ok && job != "" {
		dst = ContextWithJob(dst, job)
	}
	if viewer, ok := src.Value(viewerKey).(string); ok && viewer != "" {
		dst = ContextWithViewer(dst, viewer)
	}
	return dst
}
