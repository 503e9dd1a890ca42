package plaid

import (
	"context"

	"github.com/plaid/plaid-go/v41/plaid"
	"go.uber.org/zap"
)

// ItemIdentity is what Plaid reports about the item behind an access token.
type ItemIdentity struct {
	ItemID          string
	InstitutionID   string
	InstitutionName string
}

// DescribeItem resolves the item and institution for an access token. A missing
// institution id is left empty for the caller to reject; the name is best effort.
func (p *Provider) DescribeItem(ctx context.Context, accessToken string) (*ItemIdentity, error) {
	itemReq := plaid.NewItemGetRequest(accessToken)
	itemResp, _, err := p.client.PlaidApi.ItemGet(ctx).ItemGetRequest(*itemReq).Execute()
	if err != nil {
		return nil, wrapError("item/get", err)
	}

	item := itemResp.GetItem()
	identity := &ItemIdentity{
		ItemID:        item.GetItemId(),
		InstitutionID: item.GetInstitutionId(),
	}
	if identity.InstitutionID == "" {
		return identity, nil
	}

	instReq := plaid.NewInstitutionsGetByIdRequest(identity.InstitutionID, []plaid.CountryCode{plaid.COUNTRYCODE_US})
	instResp, _, err := p.client.PlaidApi.InstitutionsGetById(ctx).InstitutionsGetByIdRequest(*instReq).Execute()
	if err != nil {
		p.logger.Warn("institution lookup failed",
			zap.String("institution_id", identity.InstitutionID), zap.Error(wrapError("institutions/get_by_id", err)))
		return identity, nil
	}
	inst := instResp.GetInstitution()
	identity.InstitutionName = inst.GetName()
	return identity, nil
}
