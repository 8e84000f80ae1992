// Package ofx converts OFX/QFX bank and card statements into ledger
// transactions.
package ofx

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/tithe/internal/common"
	"github.com/Veraticus/tithe/internal/model"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// Opening tags at the end of a line that lost their closing bracket.
	tagFixRegex = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	// Leading MM/DD stamps some banks put in front of the merchant.
	datePrefixRegex = regexp.MustCompile(`^\d{2}/\d{2}\s+`)
)

var idNamespace = uuid.MustParse("b5d3e1f0-3c2a-4e59-8f7b-1a6c9d4e2b70")

// Options controls how statement rows become ledger transactions.
type Options struct {
	// AccountID assigns every transaction to one ledger account. When empty
	// the statement's own account number is used.
	AccountID string
	// BaseCurrency flags transactions in any other currency as needing FX.
	BaseCurrency string
}

// Parser implements OFX/QFX file parsing.
type Parser struct {
	opts Options
}

// NewParser creates a new OFX parser.
func NewParser(opts Options) *Parser {
	return &Parser{opts: opts}
}

// TransactionID derives a stable ledger id from the statement account and
// the bank's FITID so re-importing a file is a no-op.
func TransactionID(account, fitID string) string {
	return uuid.NewSHA1(idNamespace, []byte(account+"\x00"+fitID)).String()
}

// preprocessOFX fixes common formatting issues in OFX files.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

// ParseFile parses an OFX/QFX file and returns its transactions.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return nil, fmt.Errorf("empty OFX file: %w", common.ErrInvalidFile)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w: %w", common.ErrInvalidFile, err)
	}

	var transactions []model.Transaction
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		bankStmts++
		transactions = append(transactions,
			p.convertList(stmt.BankTranList, string(stmt.BankAcctFrom.AcctID), stmt.CurDef)...)
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		ccStmts++
		transactions = append(transactions,
			p.convertList(stmt.BankTranList, string(stmt.CCAcctFrom.AcctID), stmt.CurDef)...)
	}

	common.LogInfo("Parsed OFX file", common.Fields{
		"transactions":    len(transactions),
		"bank_statements": bankStmts,
		"cc_statements":   ccStmts,
	})
	return transactions, nil
}

func (p *Parser) convertList(list *ofxgo.TransactionList, account string, curDef ofxgo.CurrSymbol) []model.Transaction {
	out := make([]model.Transaction, 0, len(list.Transactions))
	for _, ofxTx := range list.Transactions {
		out = append(out, p.convertTransaction(ofxTx, account, curDef))
	}
	return out
}

// convertTransaction keeps the OFX sign convention: debits are negative.
func (p *Parser) convertTransaction(ofxTx ofxgo.Transaction, account string, curDef ofxgo.CurrSymbol) model.Transaction {
	var currency string
	if ok, _ := curDef.Valid(); ok {
		currency = curDef.String()
	}
	if ofxTx.Currency != nil {
		if ok, _ := ofxTx.Currency.CurSym.Valid(); ok {
			currency = ofxTx.Currency.CurSym.String()
		}
	}

	accountID := account
	if p.opts.AccountID != "" {
		accountID = p.opts.AccountID
	}

	tx := model.Transaction{
		ID:          TransactionID(account, string(ofxTx.FiTID)),
		AccountID:   accountID,
		Date:        ofxTx.DtPosted.Time,
		Amount:      decimal.NewFromBigRat(&ofxTx.TrnAmt.Rat, 2),
		Currency:    currency,
		Description: extractMerchantName(ofxTx),
		Memo:        strings.TrimSpace(string(ofxTx.Memo)),
		Metadata: map[string]string{
			"fitid":   string(ofxTx.FiTID),
			"trntype": ofxTx.TrnType.String(),
		},
	}
	if ofxTx.CheckNum != "" {
		tx.Metadata["checknum"] = string(ofxTx.CheckNum)
	}
	if p.opts.BaseCurrency != "" && currency != "" && !strings.EqualFold(currency, p.opts.BaseCurrency) {
		tx.NeedsFX = true
	}
	return tx
}

// extractMerchantName tries to get a clean merchant name from OFX data.
func extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := strings.TrimSpace(string(tx.Name))
	if tx.Memo != "" && isGenericDescription(name) {
		name = strings.TrimSpace(string(tx.Memo))
	}

	upper := strings.ToUpper(name)
	for _, prefix := range cardPrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	return datePrefixRegex.ReplaceAllString(name, "")
}

var cardPrefixes = []string{
	"CARD PAYMENT TO ",
	"POS PURCHASE ",
	"DEBIT CARD PURCHASE ",
	"CONTACTLESS ",
	"DIRECT DEBIT ",
	"FASTER PAYMENT ",
	"VISA PURCHASE ",
}

// isGenericDescription checks if a transaction name is too generic.
func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}
