// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

package identity

import (
	"context"
	"log/slog"
)

// CodeSender delivers a one-time code to the user's email address.
//
// # Why an interface?
//
// Delivery is an external concern (SMTP, a transactional email API). The
// domain only needs the contract; deployments inject the real transport
// while development and tests use [LogCodeSender].
type CodeSender interface {

	/*
		SendCode delivers the plain-text code to the email address.

		Parameters:
		  - context: context.Context
		  - email: string
		  - code: string
		  - purpose: CodePurpose

		Returns:
		  - error: Delivery failures
	*/
	SendCode(context context.Context, email, code string, purpose CodePurpose) error
}

// LogCodeSender writes codes to the structured log instead of sending email.
//
// Development only. Never wire this in production: codes in logs defeat
// the point of emailing them.
type LogCodeSender struct {
	logger *slog.Logger
}

// NewLogCodeSender creates a logging CodeSender.
func NewLogCodeSender(logger *slog.Logger) *LogCodeSender {
	return &LogCodeSender{logger: logger}
}

// SendCode implements CodeSender by logging the code.
func (sender *LogCodeSender) SendCode(context context.Context, email, code string, purpose CodePurpose) error {
	sender.logger.InfoContext(context, "one_time_code_issued",
		slog.String("email", email),
		slog.String("purpose", string(purpose)),
		slog.String("code", code),
	)
	return nil
}
