// Package cli implements receiptctl, the operator tool for rendering
// receipts locally and following receipt delivery from a terminal.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nyashahama/community-donor-backend/internal/amountwords"
	"github.com/nyashahama/community-donor-backend/internal/dispatch"
	"github.com/nyashahama/community-donor-backend/internal/donation"
	"github.com/nyashahama/community-donor-backend/internal/receipt"
)

// Environment provides an abstraction around the execution environment.
type Environment struct {
	Stdout     io.Writer
	Stderr     io.Writer
	HTTPClient *http.Client
}

// ─── render ───────────────────────────────────────────────────────────────────

type RenderCmd struct {
	Donor    string `required:"" help:"Donor name as printed on the receipt."`
	Email    string `help:"Donor email."`
	Phone    string `help:"Donor phone."`
	Address  string `help:"Donor address."`
	Amount   string `required:"" help:"Amount in rupees, e.g. 2500 or 1250.50."`
	Campaign string `required:"" help:"Campaign name."`
	Method   string `default:"online" help:"Payment method."`
	Txn      string `help:"Transaction id. Generated when empty."`
	ID       string `help:"Donation id the receipt number derives from. Random when empty."`

	Org    string `default:"Hope Foundation" env:"ORG_NAME" help:"Organisation name."`
	Prefix string `default:"RECEIPT" env:"ORG_RECEIPT_PREFIX" help:"Receipt filename prefix."`
	Out    string `short:"o" default:"." help:"Directory to write the PDF into."`
}

func (cmd *RenderCmd) Run(env *Environment) error {
	amount, err := decimal.NewFromString(cmd.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", cmd.Amount, err)
	}
	id := uuid.New()
	if cmd.ID != "" {
		if id, err = uuid.Parse(cmd.ID); err != nil {
			return fmt.Errorf("invalid id %q: %w", cmd.ID, err)
		}
	}
	txn := cmd.Txn
	if txn == "" {
		txn = donation.NewTransactionID(time.Now())
	}

	rec, err := receipt.NewComposer(receipt.Organization{
		Name:       cmd.Org,
		FilePrefix: cmd.Prefix,
	}, nil).Compose(donation.Donation{
		ID:            id,
		DonorName:     cmd.Donor,
		Email:         cmd.Email,
		Phone:         cmd.Phone,
		Address:       cmd.Address,
		Amount:        amount,
		Campaign:      cmd.Campaign,
		PaymentMethod: cmd.Method,
		TransactionID: txn,
		Status:        donation.StatusCompleted,
	})
	if err != nil {
		return err
	}

	path := filepath.Join(cmd.Out, rec.Filename)
	if err := os.WriteFile(path, rec.PDF, 0o644); err != nil {
		return fmt.Errorf("write receipt: %w", err)
	}
	fmt.Fprintf(env.Stdout, "receipt %s written to %s (%d bytes)\n", rec.ReceiptNo, path, len(rec.PDF))
	return nil
}

// ─── words ────────────────────────────────────────────────────────────────────

type WordsCmd struct {
	Amount string `arg:"" help:"Amount in rupees."`
}

func (cmd *WordsCmd) Run(env *Environment) error {
	amount, err := decimal.NewFromString(cmd.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", cmd.Amount, err)
	}
	fmt.Fprintln(env.Stdout, amountwords.Rupees(amount))
	return nil
}

// ─── status ───────────────────────────────────────────────────────────────────

type StatusCmd struct {
	ID       string        `arg:"" help:"Donation id."`
	API      string        `default:"http://localhost:8080" env:"RECEIPTCTL_API" help:"Service base URL."`
	Token    string        `required:"" env:"RECEIPTCTL_TOKEN" help:"Admin bearer token."`
	Wait     bool          `help:"Poll until delivery reaches a terminal outcome."`
	Timeout  time.Duration `default:"2m" help:"Give up waiting after this long."`
	Interval time.Duration `default:"500ms" help:"Initial poll interval; grows exponentially."`
}

type statusView struct {
	Stage     dispatch.Stage   `json:"stage"`
	Outcome   dispatch.Outcome `json:"outcome"`
	Timestamp time.Time        `json:"timestamp"`
	Detail    *struct {
		ReceiptNo  string `json:"receipt_no"`
		ReceiptURL string `json:"receipt_url"`
		Error      string `json:"error"`
	} `json:"detail"`
}

var errStillPending = errors.New("delivery still pending")

func (cmd *StatusCmd) Run(env *Environment) error {
	ctx, cancel := context.WithTimeout(context.Background(), cmd.Timeout)
	defer cancel()

	op := func() (statusView, error) {
		v, err := cmd.fetch(ctx, env.HTTPClient)
		if err != nil {
			return v, err
		}
		if cmd.Wait && !v.Outcome.Terminal() {
			fmt.Fprintf(env.Stderr, "%s %s, waiting...\n", v.Stage, v.Outcome)
			return v, errStillPending
		}
		return v, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cmd.Interval
	v, err := backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(cmd.Timeout))
	if err != nil {
		return err
	}

	fmt.Fprintf(env.Stdout, "%s\t%s\t%s\n", v.Stage, v.Outcome, v.Timestamp.Format(time.RFC3339))
	if v.Detail != nil {
		if v.Detail.ReceiptURL != "" {
			fmt.Fprintf(env.Stdout, "receipt %s: %s\n", v.Detail.ReceiptNo, v.Detail.ReceiptURL)
		}
		if v.Detail.Error != "" {
			fmt.Fprintf(env.Stdout, "error: %s\n", v.Detail.Error)
		}
	}
	return nil
}

// fetch reads the dispatch status once. Client errors are permanent; server
// and network errors are retried.
func (cmd *StatusCmd) fetch(ctx context.Context, client *http.Client) (statusView, error) {
	url := strings.TrimRight(cmd.API, "/") + "/api/admin/donations/" + cmd.ID + "/dispatch"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return statusView{}, backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+cmd.Token)

	resp, err := client.Do(req)
	if err != nil {
		return statusView{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		err := fmt.Errorf("%s: %s", resp.Status, body.Error)
		if resp.StatusCode < 500 {
			return statusView{}, backoff.Permanent(err)
		}
		return statusView{}, err
	}

	var v statusView
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return statusView{}, backoff.Permanent(fmt.Errorf("decode status: %w", err))
	}
	return v, nil
}

// ─── ENTRY ────────────────────────────────────────────────────────────────────

type CLI struct {
	Render RenderCmd `cmd:"" help:"Render a receipt PDF locally."`
	Words  WordsCmd  `cmd:"" help:"Print an amount in words, Indian numbering."`
	Status StatusCmd `cmd:"" help:"Show the receipt delivery status of a donation."`
}

// Run parses args and executes the selected command. It returns the process
// exit code.
func Run(env Environment, args []string) int {
	if env.HTTPClient == nil {
		env.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}

	app := CLI{}
	parser, err := kong.New(&app,
		kong.Name("receiptctl"),
		kong.Description("donation receipt tools"),
		kong.UsageOnError(),
		kong.Writers(env.Stdout, env.Stderr),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	if err != nil {
		fmt.Fprintln(env.Stderr, err)
		return 2
	}

	cntx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintln(env.Stderr, "receiptctl:", err)
		return 2
	}

	if err := cntx.Run(&env); err != nil {
		fmt.Fprintln(env.Stderr, "receiptctl:", err)
		return 1
	}
	return 0
}
