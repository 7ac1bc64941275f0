package client

import (
	"fmt"

	"github.com/manifest-network/rootcheck/internal/models"
	"github.com/manifest-network/rootcheck/internal/utils"
)

const receiptFields = `
fragment ReceiptFields on Receipt {
  id
  pc
  is
  to
  toAddress
  amount
  assetId
  gas
  param1
  param2
  val
  ptr
  digest
  reason
  ra
  rb
  rc
  rd
  len
  receiptType
  result
  gasUsed
  data
  sender
  recipient
  nonce
  contractId
  subId
}`

// fullBlocksQuery pages one block after a height cursor, with every transaction's payload and status.
const fullBlocksQuery = `
query FullBlocks($after: String, $first: Int) {
  blocks(after: $after, first: $first) {
    edges {
      cursor
      node {
        id
        header {
          height
          transactionsRoot
        }
        transactions {
          id
          rawPayload
          status {
            __typename
            ... on SuccessStatus {
              receipts {
                ...ReceiptFields
              }
            }
            ... on FailureStatus {
              reason
              receipts {
                ...ReceiptFields
              }
            }
          }
        }
      }
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}
` + receiptFields

const latestHeightQuery = `
query LatestHeight {
  chain {
    latestBlock {
      height
    }
  }
}`

const (
	typeSuccessStatus = "SuccessStatus"
	typeFailureStatus = "FailureStatus"
)

type fullBlocksData struct {
	Blocks struct {
		Edges []struct {
			Cursor string    `json:"cursor"`
			Node   blockNode `json:"node"`
		} `json:"edges"`
		PageInfo struct {
			HasNextPage bool    `json:"hasNextPage"`
			EndCursor   *string `json:"endCursor"`
		} `json:"pageInfo"`
	} `json:"blocks"`
}

type chainData struct {
	Chain struct {
		LatestBlock struct {
			Height string `json:"height"`
		} `json:"latestBlock"`
	} `json:"chain"`
}

type blockNode struct {
	ID     string `json:"id"`
	Header struct {
		Height           string `json:"height"`
		TransactionsRoot string `json:"transactionsRoot"`
	} `json:"header"`
	Transactions []transactionNode `json:"transactions"`
}

type transactionNode struct {
	ID         string      `json:"id"`
	RawPayload string      `json:"rawPayload"`
	Status     *statusNode `json:"status"`
}

type statusNode struct {
	TypeName string           `json:"__typename"`
	Reason   string           `json:"reason"`
	Receipts []models.Receipt `json:"receipts"`
}

func (n *blockNode) toModel() (*models.Block, error) {
	height, err := utils.ParseHeight(n.Header.Height)
	if err != nil {
		return nil, fmt.Errorf("block %s: %w", n.ID, err)
	}
	root, err := models.ParseDigest(n.Header.TransactionsRoot)
	if err != nil {
		return nil, fmt.Errorf("block %s transactions root: %w", n.ID, err)
	}

	block := &models.Block{
		ID: n.ID,
		Header: models.Header{
			Height:           height,
			TransactionsRoot: root,
		},
		Transactions: make([]models.Transaction, 0, len(n.Transactions)),
	}
	for i, tx := range n.Transactions {
		payload, err := utils.DecodeHex(tx.RawPayload)
		if err != nil {
			return nil, fmt.Errorf("transaction %d (%s) payload: %w", i, tx.ID, err)
		}
		block.Transactions = append(block.Transactions, models.Transaction{
			ID:         tx.ID,
			RawPayload: payload,
			Status:     tx.Status.toModel(),
		})
	}
	return block, nil
}

func (s *statusNode) toModel() models.TransactionStatus {
	if s == nil {
		return nil
	}
	switch s.TypeName {
	case typeSuccessStatus:
		return &models.SuccessStatus{Receipts: s.Receipts}
	case typeFailureStatus:
		return &models.FailureStatus{Reason: s.Reason, Receipts: s.Receipts}
	default:
		return &models.OtherStatus{TypeName: s.TypeName}
	}
}
