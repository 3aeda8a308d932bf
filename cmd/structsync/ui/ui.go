// Package ui provides user-friendly console feedback for the structsync
// commands, mirrored into the structured log.
package ui

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
)

// 📢 UserLogger provides user-friendly feedback about operations
type UserLogger struct {
	log zerolog.Logger // for debug/error logging
}

// 🎯 NewUserLogger creates a new user logger
func NewUserLogger(ctx context.Context) *UserLogger {
	return &UserLogger{
		log: *zerolog.Ctx(ctx),
	}
}

// 📊 Step logs the start of an operation step
func (u *UserLogger) Step(description string) {
	pterm.Info.WithPrefix(pterm.Prefix{Text: "📦"}).Println(description)
	u.log.Info().Msg(description)
}

// ✅ Success logs a successful result
func (u *UserLogger) Success(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	pterm.Success.WithPrefix(pterm.Prefix{Text: "✅"}).Println(msg)
	u.log.Info().Msg(msg)
}

// ⚠️ Warning logs a non-fatal problem
func (u *UserLogger) Warning(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	pterm.Warning.WithPrefix(pterm.Prefix{Text: "⚠️"}).Println(msg)
	u.log.Warn().Msg(msg)
}

// ❌ Failure logs a failed operation
func (u *UserLogger) Failure(description string, err error) {
	pterm.Error.WithPrefix(pterm.Prefix{Text: "❌"}).Println(description)
	if err != nil {
		pterm.Error.Println(err)
	}
	u.log.Error().Err(err).Msg(description)
}

// 📝 Detail logs an indented detail line
func (u *UserLogger) Detail(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	pterm.Println("  " + msg)
	u.log.Debug().Msg(msg)
}
