// Package userctx carries the authenticated subject through context.Context.
// The bearer middleware stores it and protected handlers read it back.
package userctx

import (
	"context"
	"fmt"

	"github.com/sigauth/sigauth/engine/auth/model"
)

type subjectKey struct{}

// WithSubject adds the authenticated subject to context
func WithSubject(ctx context.Context, subject model.Subject) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFromContext extracts the authenticated subject from context
func SubjectFromContext(ctx context.Context) (model.Subject, bool) {
	subject, ok := ctx.Value(subjectKey{}).(model.Subject)
	return subject, ok
}

// MustSubjectFromContext returns an error rather than panicking when the
// request was not authenticated.
func MustSubjectFromContext(ctx context.Context) (model.Subject, error) {
	subject, ok := SubjectFromContext(ctx)
	if !ok {
		return model.Subject{}, fmt.Errorf("subject not found in context")
	}
	return subject, nil
}
