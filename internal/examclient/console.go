package examclient

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const consoleHelp = `Commands:
  <no> <letter>   answer question <no>, e.g. "3 b"
  clear <no>      blank the answer to question <no>
  show            list the questions and your answers
  status          time left and autosave state
  pause           pause or resume the countdown display
  submit          hand in now
  help            this text`

// Console is a line-based front end for an Attempt.
type Console struct {
	attempt *Attempt
	in      io.Reader
	out     io.Writer
}

func NewConsole(attempt *Attempt, in io.Reader, out io.Writer) *Console {
	return &Console{attempt: attempt, in: in, out: out}
}

// Run reads commands until the attempt is submitted, input ends or ctx is
// cancelled. Closing the input does not submit.
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintf(c.out, "%s (%d minutes, %d questions)\n\n", c.attempt.Exam.Title, c.attempt.Exam.TimerMinutes, len(c.attempt.Questions))
	c.show()
	fmt.Fprintln(c.out, consoleHelp)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-c.attempt.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.attempt.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := c.handle(ctx, strings.TrimSpace(line)); err != nil {
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
		}
	}
}

func (c *Console) handle(ctx context.Context, line string) error {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "help":
		fmt.Fprintln(c.out, consoleHelp)
	case "show":
		c.show()
	case "status":
		c.status()
	case "pause":
		fmt.Fprintf(c.out, "timer %s\n", c.attempt.Timer.Toggle())
	case "submit":
		if _, err := c.attempt.Submit(ctx); err != nil {
			select {
			case <-c.attempt.Done():
				return err
			default:
				return fmt.Errorf("submit failed, type submit to retry: %w", err)
			}
		}
	case "clear":
		if len(fields) != 2 {
			return errors.New("usage: clear <no>")
		}
		idx, err := c.questionIndex(fields[1])
		if err != nil {
			return err
		}
		c.attempt.Draft.Clear(c.attempt.Questions[idx].ID)
	default:
		if len(fields) != 2 {
			return fmt.Errorf("unknown command %q, type help", line)
		}
		return c.answer(fields[0], fields[1])
	}
	return nil
}

func (c *Console) answer(no, letter string) error {
	idx, err := c.questionIndex(no)
	if err != nil {
		return err
	}
	q := c.attempt.Questions[idx]
	if len(letter) != 1 || letter[0] < 'a' || int(letter[0]-'a') >= len(q.Options) {
		return fmt.Errorf("question %d has options a-%c", idx+1, 'a'+len(q.Options)-1)
	}
	return c.attempt.Draft.Select(q.ID, q.Options[letter[0]-'a'])
}

func (c *Console) questionIndex(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > len(c.attempt.Questions) {
		return 0, fmt.Errorf("question number must be 1-%d", len(c.attempt.Questions))
	}
	return n - 1, nil
}

func (c *Console) show() {
	for i, q := range c.attempt.Questions {
		fmt.Fprintf(c.out, "%d. %s\n", i+1, q.QuestionText)
		picked, _ := c.attempt.Draft.Selected(q.ID)
		for j, opt := range q.Options {
			mark := " "
			if opt == picked {
				mark = "*"
			}
			fmt.Fprintf(c.out, "  %s %c) %s\n", mark, 'a'+j, opt)
		}
	}
	fmt.Fprintln(c.out)
}

func (c *Console) status() {
	t := c.attempt.Timer
	fmt.Fprintf(c.out, "%s left (%s, %s) | answered %d/%d | autosave %s\n",
		t.Format(), t.Level(), t.State(), c.attempt.Draft.Answered(), len(c.attempt.Questions), c.attempt.SaveStatus())
}
