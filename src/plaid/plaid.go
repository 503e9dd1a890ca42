package plaid

import (
	"context"
	"errors"
	"finsync/src/models"
	"fmt"

	"github.com/plaid/plaid-go/v41/plaid"
	"go.uber.org/zap"
)

var ErrInvalidEnvironment = errors.New("invalid plaid environment")

func NewPlaidClient(clientID, secret, env string) (*plaid.APIClient, error) {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	configuration.AddDefaultHeader("PLAID-SECRET", secret)

	switch env {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidEnvironment, env)
	}

	return plaid.NewAPIClient(configuration), nil
}

// Provider adapts the Plaid API to the canonical provider types. Every response is
// normalized before it leaves this package.
type Provider struct {
	client   *plaid.APIClient
	pageSize int32
	logger   *zap.Logger
}

func NewProvider(client *plaid.APIClient, pageSize int32, logger *zap.Logger) *Provider {
	return &Provider{client: client, pageSize: pageSize, logger: logger}
}

func (p *Provider) GetBalances(ctx context.Context, accessToken string) ([]models.ProviderAccount, error) {
	request := plaid.NewAccountsBalanceGetRequest(accessToken)

	resp, _, err := p.client.PlaidApi.AccountsBalanceGet(ctx).AccountsBalanceGetRequest(*request).Execute()
	if err != nil {
		return nil, wrapError("accounts/balance/get", err)
	}

	accounts := resp.GetAccounts()
	out := make([]models.ProviderAccount, 0, len(accounts))
	for _, acc := range accounts {
		pa, err := toProviderAccount(acc)
		if err != nil {
			return nil, err
		}
		out = append(out, pa)
	}
	return out, nil
}

func (p *Provider) SyncTransactions(ctx context.Context, accessToken, cursor string) (*models.SyncPage, error) {
	request := plaid.NewTransactionsSyncRequest(accessToken)
	if cursor != "" {
		request.SetCursor(cursor)
	}
	if p.pageSize > 0 {
		request.SetCount(p.pageSize)
	}

	resp, _, err := p.client.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*request).Execute()
	if err != nil {
		return nil, wrapError("transactions/sync", err)
	}

	page, err := toSyncPage(resp)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("plaid sync page",
		zap.Int("added", len(page.Added)),
		zap.Int("modified", len(page.Modified)),
		zap.Int("removed", len(page.Removed)),
		zap.Bool("has_more", page.HasMore))
	return page, nil
}

// APIError is a Plaid error response. Code carries values such as ITEM_LOGIN_REQUIRED.
type APIError struct {
	Endpoint string
	Type     string
	Code     string
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("plaid %s: %s/%s: %s", e.Endpoint, e.Type, e.Code, e.Message)
}

func wrapError(endpoint string, err error) error {
	perr, convErr := plaid.ToPlaidError(err)
	if convErr != nil || perr.GetErrorCode() == "" {
		return fmt.Errorf("plaid %s: %w", endpoint, err)
	}
	return &APIError{
		Endpoint: endpoint,
		Type:     string(perr.GetErrorType()),
		Code:     perr.GetErrorCode(),
		Message:  perr.GetErrorMessage(),
	}
}
