package usecase

import (
	"github.com/nguyentranbao-ct/storefront/pkg/tmplx"
)

const (
	ButtonReload   = "Reload"
	ButtonReturn   = "Return"
	ButtonConfirm  = "Confirm"
	ButtonCheckout = "Checkout"
	ButtonBack     = "Back"
)

const (
	msgLoading        = "Loading..."
	msgLoadFailed     = "Error loading catalog"
	msgCartEmpty      = "Cart is empty"
	msgCheckingOut    = "Checking out..."
	msgExecuting      = "Executing order..."
	msgThankYou       = "Thank you!"
	msgFollowBrowser  = "Please follow the instructions in the web browser to complete your purchase."
	msgCompleted      = "Your purchase has been completed."
	msgNoBrowser      = "Could not launch web browser."
	msgObsolete       = "The catalog has changed while you were browsing."
	msgInvalid        = "The purchase has become invalid."
	msgUnexpected     = "An unexpected error occurred."
	msgCreditCoverage = "Your purchase can be completed on credit alone."
	msgValidating     = "Checking availability..."
)

var (
	tmplConfirmCredit = tmplx.MustParse("confirm_credit",
		`Do you wish to continue? {{.Total}} of store credit will be used.`,
		tmplx.WithSample(map[string]string{"Total": "$1.00"}, tmplx.NotEmpty))
	tmplCartTotal = tmplx.MustParse("cart_total",
		`Total: {{.Total}}`,
		tmplx.WithSample(map[string]string{"Total": "$1.00"}, tmplx.NotEmpty))
	tmplCause = tmplx.MustParse("cause",
		`{{truncate 500 .Cause}}`)
)

// Status replaces whatever the user currently sees. No buttons means the
// status is informational.
type Status struct {
	Message string   `json:"message"`
	Detail  string   `json:"detail,omitempty"`
	Buttons []string `json:"buttons"`
	// URL is the off-site payment page, once known.
	URL string `json:"url,omitempty"`
}

func (s Status) HasButton(name string) bool {
	for _, b := range s.Buttons {
		if b == name {
			return true
		}
	}
	return false
}

func causeDetail(err error) string {
	if err == nil {
		return ""
	}
	return tmplCause.MustRender(map[string]string{"Cause": err.Error()})
}
