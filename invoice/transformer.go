package invoice

import (
	"github.com/chararch/batchcsv"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

//Transformer derives an output invoice from an input invoice, a nil result drops the invoice
type Transformer func(inv *Invoice) *Invoice

//ApplyDiscount sets FinalAmount = Amount - Amount*(Discount/100).
//Discounts outside [0, 100] are applied as given.
func ApplyDiscount(inv *Invoice) *Invoice {
	discount := inv.Amount.Mul(inv.Discount.Div(hundred))
	inv.FinalAmount = decimal.NewNullDecimal(inv.Amount.Sub(discount))
	return inv
}

//NewProcessor adapts a Transformer to a chunk step Processor
func NewProcessor(transformer Transformer) batchcsv.Processor {
	if transformer == nil {
		panic("transformer must not be nil")
	}
	return batchcsv.ProcessorFunc(func(item interface{}, chunkCtx *batchcsv.ChunkContext) (interface{}, batchcsv.BatchError) {
		inv, ok := item.(*Invoice)
		if !ok {
			return nil, batchcsv.NewBatchError(batchcsv.ErrCodeGeneral, "unexpected item type:%T", item)
		}
		out := transformer(inv)
		if out == nil {
			return nil, nil
		}
		return out, nil
	})
}
