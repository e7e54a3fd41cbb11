package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/printshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
)

type counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	CounterKey(name string) string
}

// Sequencer issues display codes such as V-000042 from a Redis counter per
// document type.
type Sequencer struct {
	client counter
	digits int
}

// NewSequencer pads codes to digits, six when digits is not positive.
func NewSequencer(client counter, digits int) (*Sequencer, error) {
	if client == nil {
		return nil, errors.New("counter client is required")
	}
	if digits <= 0 {
		digits = 6
	}
	return &Sequencer{client: client, digits: digits}, nil
}

// Next returns the next display code for docType.
func (s *Sequencer) Next(ctx context.Context, docType enums.DocumentType) (string, error) {
	if !docType.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "document type is invalid")
	}
	n, err := s.client.Incr(ctx, s.client.CounterKey("document:"+docType.String()))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue display code")
	}
	return fmt.Sprintf("%s-%0*d", docType.CodePrefix(), s.digits, n), nil
}
