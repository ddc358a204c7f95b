package ledger

import "github.com/shopspring/decimal"

const EventLedgerPosted = "LedgerPosted"

// LedgerPosted is emitted once per transaction appended to a seller-month.
type LedgerPosted struct {
	TransactionID string          `json:"transaction_id"`
	SellerID      string          `json:"seller_id"`
	Period        Period          `json:"period"`
	Kind          Kind            `json:"kind"`
	Quantity      int             `json:"quantity"`
	Total         decimal.Decimal `json:"total"`
}
