package adyen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/railzwaylabs/payrail/internal/connector/domain"
)

type amount struct {
	Value    int64  `json:"value"`
	Currency string `json:"currency"`
}

type errorResponse struct {
	Status       int    `json:"status"`
	ErrorCode    string `json:"errorCode"`
	Message      string `json:"message"`
	ErrorType    string `json:"errorType"`
	PSPReference string `json:"pspReference"`
}

type address struct {
	Street            string `json:"street,omitempty"`
	HouseNumberOrName string `json:"houseNumberOrName,omitempty"`
	City              string `json:"city,omitempty"`
	PostalCode        string `json:"postalCode,omitempty"`
	StateOrProvince   string `json:"stateOrProvince,omitempty"`
	Country           string `json:"country"`
}

type paymentRequest struct {
	Amount           amount            `json:"amount"`
	MerchantAccount  string            `json:"merchantAccount"`
	Reference        string            `json:"reference"`
	PaymentMethod    map[string]string `json:"paymentMethod"`
	ReturnURL        string            `json:"returnUrl,omitempty"`
	ShopperEmail     string            `json:"shopperEmail,omitempty"`
	ShopperReference string            `json:"shopperReference,omitempty"`
	ShopperStatement string            `json:"shopperStatement,omitempty"`
	BillingAddress   *address          `json:"billingAddress,omitempty"`
	Channel          string            `json:"channel"`
	AdditionalData   map[string]string `json:"additionalData,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

type paymentResponse struct {
	PSPReference      string `json:"pspReference"`
	ResultCode        string `json:"resultCode"`
	MerchantReference string `json:"merchantReference"`
	RefusalReason     string `json:"refusalReason"`
	RefusalReasonCode string `json:"refusalReasonCode"`
	Action            *struct {
		Type   string            `json:"type"`
		URL    string            `json:"url"`
		Method string            `json:"method"`
		Data   map[string]string `json:"data"`
	} `json:"action"`
	AdditionalData map[string]string `json:"additionalData"`
}

type modificationRequest struct {
	MerchantAccount string  `json:"merchantAccount"`
	Reference       string  `json:"reference"`
	Amount          *amount `json:"amount,omitempty"`
}

type modificationResponse struct {
	PSPReference        string `json:"pspReference"`
	PaymentPSPReference string `json:"paymentPspReference"`
	Status              string `json:"status"`
	Reference           string `json:"reference"`
}

func buildPaymentRequest(rd *domain.AuthorizeRouterData) (paymentRequest, error) {
	account, err := merchantAccount(rd.ConnectorAuthType)
	if err != nil {
		return paymentRequest{}, err
	}
	amt, err := amountOf(rd.Request.Amount, rd.Request.Currency)
	if err != nil {
		return paymentRequest{}, err
	}
	pm, err := paymentMethod(rd)
	if err != nil {
		return paymentRequest{}, err
	}

	req := paymentRequest{
		Amount:           amt,
		MerchantAccount:  account,
		Reference:        reference(rd.Envelope, ""),
		PaymentMethod:    pm,
		ReturnURL:        rd.ReturnURL,
		ShopperEmail:     rd.Request.Email,
		ShopperReference: rd.CustomerID,
		ShopperStatement: rd.Request.StatementDescriptor,
		Channel:          "Web",
		Metadata:         rd.Request.Metadata,
	}
	if !rd.Request.IsAutoCapture() {
		req.AdditionalData = map[string]string{"manualCapture": "true"}
	}
	if a := rd.Address; a != nil && a.Country != "" {
		req.BillingAddress = &address{
			Street:            a.Line1,
			HouseNumberOrName: a.Line2,
			City:              a.City,
			PostalCode:        a.PostalCode,
			StateOrProvince:   a.State,
			Country:           strings.ToUpper(a.Country),
		}
	}
	if rd.ReturnURL == "" && (rd.AuthType == domain.AuthThreeDS || rd.Request.PaymentMethodData.Type != domain.PaymentMethodCard) {
		return paymentRequest{}, domain.MissingField("return_url")
	}
	return req, nil
}

var walletTokenFields = map[string]string{
	"googlepay": "googlePayToken",
	"applepay":  "applePayToken",
}

func paymentMethod(rd *domain.AuthorizeRouterData) (map[string]string, error) {
	pm := rd.Request.PaymentMethodData
	switch pm.Type {
	case domain.PaymentMethodCard:
		if pm.Card == nil {
			return nil, domain.MissingField("payment_method_data.card")
		}
		out := map[string]string{
			"type":        "scheme",
			"number":      strings.ReplaceAll(pm.Card.Number, " ", ""),
			"expiryMonth": pm.Card.ExpMonth,
			"expiryYear":  pm.Card.ExpYear4(),
			"cvc":         pm.Card.CVC,
		}
		if holder := strings.TrimSpace(pm.Card.HolderName); holder != "" {
			out["holderName"] = holder
		} else if name := rd.Address.FullName(); name != "" {
			out["holderName"] = name
		}
		return out, nil
	case domain.PaymentMethodWallet:
		if pm.Wallet == nil {
			return nil, domain.MissingField("payment_method_data.wallet")
		}
		walletType := strings.ToLower(pm.Wallet.Type)
		out := map[string]string{"type": walletType}
		if field, ok := walletTokenFields[walletType]; ok {
			if pm.Wallet.Token == "" {
				return nil, domain.MissingField("payment_method_data.wallet.token")
			}
			out[field] = pm.Wallet.Token
		}
		return out, nil
	case domain.PaymentMethodBankRedirect:
		if pm.BankRedirect == nil {
			return nil, domain.MissingField("payment_method_data.bank_redirect")
		}
		return map[string]string{"type": strings.ToLower(pm.BankRedirect.Type)}, nil
	}
	return nil, fmt.Errorf("%w: adyen does not accept %q", domain.ErrPaymentMethodNotSupported, pm.Type)
}

func attemptStatus(resultCode string, autoCapture bool) domain.AttemptStatus {
	switch resultCode {
	case "Authorised":
		if autoCapture {
			return domain.AttemptCharged
		}
		return domain.AttemptAuthorized
	case "Refused", "Cancelled", "Error":
		return domain.AttemptFailure
	case "RedirectShopper", "IdentifyShopper", "ChallengeShopper", "PresentToShopper":
		return domain.AttemptAuthenticationPending
	default:
		return domain.AttemptPending
	}
}

func applyPaymentResponse(rd *domain.AuthorizeRouterData, body paymentResponse, httpStatus int) *domain.AuthorizeRouterData {
	out := rd.Clone()
	out.Status = attemptStatus(body.ResultCode, rd.Request.IsAutoCapture())

	if out.Status == domain.AttemptFailure {
		status := domain.AttemptFailure
		out.Fail(domain.ErrorResponse{
			StatusCode:             httpStatus,
			Code:                   body.RefusalReasonCode,
			Message:                body.RefusalReason,
			Reason:                 body.ResultCode,
			AttemptStatus:          &status,
			ConnectorTransactionID: body.PSPReference,
		})
		return out
	}

	resp := domain.PaymentsResponseData{
		ResourceID:                   body.PSPReference,
		ConnectorResponseReferenceID: body.MerchantReference,
	}
	if txn := body.AdditionalData["networkTxReference"]; txn != "" {
		resp.NetworkTxnID = txn
	}
	if body.Action != nil && body.Action.URL != "" {
		method := strings.ToUpper(body.Action.Method)
		if method == "" {
			method = "GET"
		}
		resp.Redirection = &domain.RedirectForm{Endpoint: body.Action.URL, Method: method, FormFields: body.Action.Data}
	}
	if body.Action != nil {
		meta, _ := json.Marshal(map[string]string{"action_type": body.Action.Type})
		resp.ConnectorMetadata = meta
	}
	out.Succeed(resp)
	return out
}
