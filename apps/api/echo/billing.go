package echoapi

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/billing"
)

// signatureHeader is the provider's signature header on webhook deliveries.
const signatureHeader = "Stripe-Signature"

type billingApi struct {
	svc *billing.Service
}

func registerBillingAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := billingApi{svc: deps.BillingSvc}

	bg := g.Group("/billing")

	// un-authed: authenticated by signature, not by JWT
	bg.POST("/stripe/webhook", api.stripeWebhook)

	cg := bg.Group("/credits", jwt)
	cg.GET("/balance", api.balance)
	cg.GET("/transactions", api.transactions)
}

// stripeWebhook ingests one provider delivery.
//
// Response contract: 400 tells the provider the delivery is unprocessable and
// must not be retried; 200 acknowledges it (including idempotent replays);
// anything else makes the provider redeliver.
func (api *billingApi) stripeWebhook(ctx echo.Context) error {
	payload, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "reading request body")
	}

	err = api.svc.HandleEvent(ctx.Request().Context(), payload, ctx.Request().Header.Get(signatureHeader))
	switch errors.Cause(err) {
	case nil:
		return ctx.JSON(http.StatusOK, echo.Map{"received": true})
	case billing.ErrBadSignature:
		return echo.NewHTTPError(http.StatusBadRequest, "invalid signature")
	case billing.ErrMalformedPayload:
		return echo.NewHTTPError(http.StatusBadRequest, "malformed payload")
	default:
		return errors.Wrap(err, "handling webhook event")
	}
}

func (api *billingApi) balance(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	balance, err := api.svc.Balance(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "fetching balance")
	}
	return ctx.JSON(http.StatusOK, balance)
}

func (api *billingApi) transactions(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	txs, err := api.svc.Transactions(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "fetching transactions")
	}
	if txs == nil {
		txs = []billing.CreditTransaction{}
	}
	return ctx.JSON(http.StatusOK, txs)
}
