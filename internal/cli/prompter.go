package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ozbooks/agent-smith/internal/flow"
	"github.com/ozbooks/agent-smith/internal/model"
)

// ErrInputCancelled is returned when input is canceled by context.
var ErrInputCancelled = errors.New("input canceled")

// Prompter implements flow.Prompter over a terminal: it presents the
// suggested category and labels and lets the user accept, adjust, or skip.
type Prompter struct {
	writer io.Writer
	reader *bufio.Reader
}

// NewPrompter creates a prompter over the given reader and writer,
// defaulting to stdin/stdout.
func NewPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}

	return &Prompter{
		reader: bufio.NewReader(reader),
		writer: writer,
	}
}

// ConfirmCategorization presents a pending decision and collects the
// user's verdict. ok=false means the user skipped the transaction.
func (p *Prompter) ConfirmCategorization(ctx context.Context, pending flow.Pending) (model.CategorizationResult, bool, error) {
	txn := pending.Transaction
	result := pending.Result

	content := fmt.Sprintf("Payee:      %s\nAmount:     $%.2f\nDate:       %s",
		txn.Payee, txn.Amount, txn.Date.Format("2006-01-02"))
	fmt.Fprintln(p.writer, RenderBox("Transaction", content))

	suggestion := fmt.Sprintf("Suggested: %s (%d%% confidence)",
		SuccessStyle.Render(result.Category), result.Confidence)
	if len(result.Labels) > 0 {
		suggestion += "\nLabels:    " + strings.Join(result.Labels, ", ")
	}
	if result.Source == model.SourceLLM {
		suggestion += "\n" + SubtleStyle.Render(RobotIcon+" "+result.Reasoning)
	}
	fmt.Fprintln(p.writer, suggestion)

	fmt.Fprintln(p.writer, "  [A] Accept")
	fmt.Fprintln(p.writer, "  [C] Enter a different category")
	fmt.Fprintln(p.writer, "  [S] Skip")

	for {
		choice, err := p.readLine(ctx, PromptStyle.Render("Choice [A/c/s]: "))
		if err != nil {
			return model.CategorizationResult{}, false, err
		}

		switch strings.ToLower(strings.TrimSpace(choice)) {
		case "", "a":
			return result, true, nil
		case "c":
			category, err := p.readLine(ctx, PromptStyle.Render("Category: "))
			if err != nil {
				return model.CategorizationResult{}, false, err
			}
			category = strings.TrimSpace(category)
			if category == "" {
				fmt.Fprintln(p.writer, FormatError("category cannot be empty"))
				continue
			}
			adjusted := result
			adjusted.Category = category
			adjusted.Confidence = 100
			return adjusted, true, nil
		case "s":
			return model.CategorizationResult{}, false, nil
		default:
			fmt.Fprintln(p.writer, FormatError("please answer A, C, or S"))
		}
	}
}

// readLine reads one line of input, respecting context cancellation.
func (p *Prompter) readLine(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(p.writer, prompt)

	type result struct {
		err   error
		value string
	}
	resultCh := make(chan result, 1)

	go func() {
		value, err := p.reader.ReadString('\n')
		resultCh <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrInputCancelled, ctx.Err())
	case r := <-resultCh:
		if r.err != nil && !errors.Is(r.err, io.EOF) {
			return "", fmt.Errorf("failed to read input: %w", r.err)
		}
		return strings.TrimRight(r.value, "\r\n"), nil
	}
}
