package gateway

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Chandan5689/SajiloFix-sub002/models"
)

// Cash is the offline method: no external navigation happens and completion
// is recorded when the provider confirms payment was received.
type Cash struct{}

func NewCash() *Cash { return &Cash{} }

func (c *Cash) Method() models.PaymentMethod { return models.MethodCash }

func (c *Cash) Initiate(ctx context.Context, tx *models.Transaction) (*Handoff, error) {
	return &Handoff{Kind: HandoffNone}, nil
}

func (c *Cash) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	return nil, errors.New("cash payments have no gateway verification")
}
