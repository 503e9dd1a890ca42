package plaid

import (
	"encoding/json"
	"finsync/src/models"
	"fmt"
	"strings"
	"time"

	"github.com/plaid/plaid-go/v41/plaid"
	"github.com/shopspring/decimal"
)

func toSyncPage(resp plaid.TransactionsSyncResponse) (*models.SyncPage, error) {
	page := &models.SyncPage{
		NextCursor: resp.GetNextCursor(),
		HasMore:    resp.GetHasMore(),
	}

	for _, tx := range resp.GetAdded() {
		pt, err := toProviderTransaction(tx)
		if err != nil {
			return nil, err
		}
		page.Added = append(page.Added, pt)
	}
	for _, tx := range resp.GetModified() {
		pt, err := toProviderTransaction(tx)
		if err != nil {
			return nil, err
		}
		page.Modified = append(page.Modified, pt)
	}
	for _, rm := range resp.GetRemoved() {
		if id := rm.GetTransactionId(); id != "" {
			page.Removed = append(page.Removed, id)
		}
	}
	return page, nil
}

func toProviderTransaction(tx plaid.Transaction) (models.ProviderTransaction, error) {
	raw, err := json.Marshal(tx)
	if err != nil {
		return models.ProviderTransaction{}, fmt.Errorf("encode transaction %s: %w", tx.GetTransactionId(), err)
	}

	date, err := parseDate(tx.GetDate())
	if err != nil {
		return models.ProviderTransaction{}, fmt.Errorf("transaction %s date: %w", tx.GetTransactionId(), err)
	}

	out := models.ProviderTransaction{
		TransactionID:        tx.GetTransactionId(),
		AccountID:            tx.GetAccountId(),
		Name:                 tx.GetName(),
		MerchantName:         tx.GetMerchantName(),
		Amount:               decimal.NewFromFloat(tx.GetAmount()),
		Currency:             currency(tx.GetIsoCurrencyCode(), tx.GetUnofficialCurrencyCode()),
		Date:                 date,
		Pending:              tx.GetPending(),
		PendingTransactionID: tx.GetPendingTransactionId(),
		CategoryID:           tx.GetCategoryId(),
		Category:             strings.Join(tx.GetCategory(), ", "),
		PaymentChannel:       tx.GetPaymentChannel(),
		Raw:                  raw,
	}
	if pfc, ok := tx.GetPersonalFinanceCategoryOk(); ok && pfc != nil {
		out.PersonalFinanceCategory = pfc.GetPrimary()
	}
	if s := tx.GetAuthorizedDate(); s != "" {
		d, err := parseDate(s)
		if err != nil {
			return models.ProviderTransaction{}, fmt.Errorf("transaction %s authorized date: %w", tx.GetTransactionId(), err)
		}
		out.AuthorizedDate = &d
	}
	return out, nil
}

func toProviderAccount(acc plaid.AccountBase) (models.ProviderAccount, error) {
	raw, err := json.Marshal(acc)
	if err != nil {
		return models.ProviderAccount{}, fmt.Errorf("encode account %s: %w", acc.GetAccountId(), err)
	}

	bal := acc.GetBalances()
	rawBal, err := json.Marshal(bal)
	if err != nil {
		return models.ProviderAccount{}, fmt.Errorf("encode balances %s: %w", acc.GetAccountId(), err)
	}

	out := models.ProviderAccount{
		AccountID:    acc.GetAccountId(),
		Name:         acc.GetName(),
		OfficialName: acc.GetOfficialName(),
		Type:         string(acc.GetType()),
		Subtype:      string(acc.GetSubtype()),
		Mask:         acc.GetMask(),
		Raw:          raw,
		Balances: models.ProviderBalances{
			Currency: currency(bal.GetIsoCurrencyCode(), bal.GetUnofficialCurrencyCode()),
			Raw:      rawBal,
		},
	}
	if v, ok := bal.GetCurrentOk(); ok && v != nil {
		out.Balances.Current = decimal.NewNullDecimal(decimal.NewFromFloat(*v))
	}
	if v, ok := bal.GetAvailableOk(); ok && v != nil {
		out.Balances.Available = decimal.NewNullDecimal(decimal.NewFromFloat(*v))
	}
	if v, ok := bal.GetLimitOk(); ok && v != nil {
		out.Balances.Limit = decimal.NewNullDecimal(decimal.NewFromFloat(*v))
	}
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}

func currency(iso, unofficial string) string {
	if iso != "" {
		return iso
	}
	return unofficial
}
