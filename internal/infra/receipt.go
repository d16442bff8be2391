package infra

import (
	"fmt"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/service"

	"github.com/bwmarrin/snowflake"
)

// ReceiptNumberer issues payment receipt numbers from a snowflake node.
// Numbers stay unique across processes as long as each gets its own node id.
type ReceiptNumberer struct {
	node *snowflake.Node
}

var _ service.ReceiptNumberer = (*ReceiptNumberer)(nil)

func NewReceiptNumberer(nodeID int64) (*ReceiptNumberer, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("receipt numberer: %w", err)
	}
	return &ReceiptNumberer{node: node}, nil
}

// Next returns "REC-" plus the base32 snowflake id.
func (r *ReceiptNumberer) Next() string {
	return "REC-" + r.node.Generate().Base32()
}
