package errorhandler

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"

	"github.com/tokendesk/otc-desk/common/errs"
	"github.com/tokendesk/otc-desk/pkg/logger"
	"github.com/tokendesk/otc-desk/pkg/logger/slogx"
)

// New setup error handler middleware. Engine error kinds map onto HTTP
// statuses; anything unrecognized is a 500 with the detail kept out of
// the response body.
func New() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		if status, ok := statusFromKind(err); ok {
			return errors.WithStack(ctx.Status(status).JSON(fiber.Map{
				"error": publicMessage(err),
			}))
		}
		if e := new(errs.PublicError); errors.As(err, &e) {
			return errors.WithStack(ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
				"error": e.Message(),
			}))
		}
		if e := new(fiber.Error); errors.As(err, &e) {
			return errors.WithStack(ctx.Status(e.Code).JSON(fiber.Map{
				"error": e.Error(),
			}))
		}
		logger.ErrorContext(ctx.UserContext(), "Something went wrong, api error",
			slogx.String("event", "api_error"),
			slogx.Error(err),
		)
		return errors.WithStack(ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal Server Error",
		}))
	}
}

func statusFromKind(err error) (int, bool) {
	switch {
	case errors.Is(err, errs.Validation):
		return http.StatusUnprocessableEntity, true
	case errors.Is(err, errs.NotFound):
		return http.StatusNotFound, true
	case errors.Is(err, errs.Conflict),
		errors.Is(err, errs.Immutable),
		errors.Is(err, errs.State):
		return http.StatusConflict, true
	}
	return 0, false
}

// publicMessage prefers the detail sentinel's message when one is in the
// chain, falling back to the bare kind.
func publicMessage(err error) string {
	if e := new(errs.PublicError); errors.As(err, &e) {
		return e.Message()
	}
	var kind errs.ErrorKind
	if !errors.As(err, &kind) {
		return err.Error()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if wrapper, ok := e.(interface{ Unwrap() error }); ok {
			if _, isKind := wrapper.Unwrap().(errs.ErrorKind); isKind {
				return e.Error()
			}
		}
	}
	return kind.Error()
}
