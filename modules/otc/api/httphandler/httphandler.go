package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"

	"github.com/tokendesk/otc-desk/common"
	"github.com/tokendesk/otc-desk/common/errs"
	"github.com/tokendesk/otc-desk/modules/otc"
	"github.com/tokendesk/otc-desk/modules/otc/internal/entity"
)

// callerAddressHeader carries the authenticated wallet of the caller,
// injected by the gateway in front of this service.
const callerAddressHeader = "X-Caller-Address"

type HttpHandler struct {
	engine *otc.Engine
}

func New(engine *otc.Engine) *HttpHandler {
	return &HttpHandler{
		engine: engine,
	}
}

type HttpResponse[T any] struct {
	Error  *string `json:"error"`
	Result *T      `json:"result,omitempty"`
}

func (h *HttpHandler) callerAddress(ctx *fiber.Ctx) string {
	return ctx.Get(callerAddressHeader)
}

// requireOwner loads a consignment and verifies the caller owns it.
func (h *HttpHandler) requireOwner(ctx *fiber.Ctx, id string) (*entity.Consignment, error) {
	consignment, err := h.engine.GetConsignment(ctx.UserContext(), id)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return nil, errs.NewPublicError("consignment not found")
		}
		return nil, errors.Wrap(err, "error during GetConsignment")
	}
	if !otc.IsConsignmentOwner(consignment, h.callerAddress(ctx)) {
		return nil, errors.WithStack(fiber.NewError(fiber.StatusForbidden, "caller does not own this consignment"))
	}
	return consignment, nil
}

func parseChain(raw string) (common.Chain, error) {
	chain := common.Chain(raw)
	if raw != "" && !chain.IsSupported() {
		return "", errs.NewPublicError("unsupported chain")
	}
	return chain, nil
}
