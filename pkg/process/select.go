package process

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoExecutable is returned when no candidate passes the check.
var ErrNoExecutable = errors.New("no working executable found")

// SelectExecutable returns the first candidate that runs checkArgs with exit
// status 0. Empty candidates are skipped.
func SelectExecutable(ctx context.Context, r Runner, candidates []string, checkArgs ...string) (string, error) {
	var tried []string
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		tried = append(tried, candidate)

		res, err := r.Run(ctx, Command{Name: candidate, Args: checkArgs})
		if err != nil || !res.Success() {
			continue
		}
		return candidate, nil
	}
	return "", fmt.Errorf("%w: tried [%s]", ErrNoExecutable, strings.Join(tried, ", "))
}
