package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"shopdesk.io/app/internal/modules/payments"
)

type mockWebhookFlags struct {
	url        string
	secret     string
	eventID    string
	eventType  string
	paymentRef string
	captureRef string
	refundRef  string
	amount     int
	currency   string
	dryRun     bool
}

var mwf mockWebhookFlags

var mockWebhookCmd = &cobra.Command{
	Use:   "mock-webhook",
	Short: "Send a signed mock payment provider webhook",
	Example: `  storefront mock-webhook --payment-ref MOCK-ABC --type payment.succeeded
  storefront mock-webhook --type refund.succeeded --refund-ref MOCKREF-1 --dry-run`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if mwf.secret == "" {
			return fmt.Errorf("--secret not given and STOREFRONT_PAYMENTS_MOCK_WEBHOOK_SECRET not set")
		}
		body, err := mockWebhookBody(mwf)
		if err != nil {
			return err
		}
		sig := payments.SignMock(mwf.secret, time.Now(), body)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %s\n", payments.MockSignatureHeader, sig)
		fmt.Fprintf(out, "Body: %s\n", body)
		if mwf.dryRun {
			fmt.Fprintln(out, "[dry run] not sending")
			return nil
		}

		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, mwf.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(payments.MockSignatureHeader, sig)
		res, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
		if err != nil {
			return fmt.Errorf("send webhook: %w", err)
		}
		defer res.Body.Close()
		resBody, _ := io.ReadAll(io.LimitReader(res.Body, 1<<16))
		fmt.Fprintf(out, "Status: %s\nResponse: %s\n", res.Status, resBody)
		if res.StatusCode >= 300 {
			return fmt.Errorf("webhook rejected with %s", res.Status)
		}
		return nil
	},
}

func mockWebhookBody(f mockWebhookFlags) ([]byte, error) {
	var ev payments.MockWebhook
	ev.ID = f.eventID
	if ev.ID == "" {
		ev.ID = "evt_" + uuid.NewString()
	}
	ev.Type = f.eventType
	ev.Data.PaymentRef = f.paymentRef
	ev.Data.CaptureRef = f.captureRef
	ev.Data.RefundRef = f.refundRef
	ev.Data.AmountCents = f.amount
	ev.Data.Currency = f.currency
	return json.Marshal(ev)
}

func init() {
	fl := mockWebhookCmd.Flags()
	fl.StringVar(&mwf.url, "url", "http://localhost:8080/webhooks/mock", "webhook URL")
	fl.StringVar(&mwf.secret, "secret", os.Getenv("STOREFRONT_PAYMENTS_MOCK_WEBHOOK_SECRET"), "webhook secret")
	fl.StringVar(&mwf.eventID, "event-id", "", "event id (random when empty)")
	fl.StringVar(&mwf.eventType, "type", payments.EventPaymentSucceeded,
		"event type (payment.succeeded, payment.failed, refund.succeeded, refund.failed)")
	fl.StringVar(&mwf.paymentRef, "payment-ref", "", "provider payment ref")
	fl.StringVar(&mwf.captureRef, "capture-ref", "", "provider capture ref")
	fl.StringVar(&mwf.refundRef, "refund-ref", "", "provider refund ref, for refund events")
	fl.IntVar(&mwf.amount, "amount", 5000, "amount in cents")
	fl.StringVar(&mwf.currency, "currency", "USD", "currency")
	fl.BoolVar(&mwf.dryRun, "dry-run", false, "print the signed request without sending it")
	rootCmd.AddCommand(mockWebhookCmd)
}
