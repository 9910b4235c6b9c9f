package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured is returned by every mutating operation when the provider
// API key is missing. Token reads degrade to empty values instead.
var ErrNotConfigured = errors.New("identity provider is not configured")

// ProviderError carries the provider's opaque error code verbatim so the UI
// layer can translate it.
type ProviderError struct {
	Code       string
	StatusCode int
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider error %s (status %d)", e.Code, e.StatusCode)
}

type providerErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// providerErrorFromBody decodes a non-2xx provider response into a
// ProviderError. The code is the leading token of the error message; the
// provider sometimes appends free text after a colon.
func providerErrorFromBody(status int, body []byte) error {
	var decoded providerErrorBody
	code := ""
	if err := json.Unmarshal(body, &decoded); err == nil {
		code = decoded.Error.Message
	}
	if idx := strings.IndexAny(code, " :"); idx > 0 {
		code = code[:idx]
	}
	return &ProviderError{Code: code, StatusCode: status}
}

// User-facing messages for the login form. The code set is fixed; anything
// unknown maps to the generic message.
const (
	MsgInvalidEmail    = "El correo electrónico no es válido."
	MsgBadCredentials  = "Correo o contraseña incorrectos."
	MsgTooManyRequests = "Demasiados intentos. Intenta de nuevo más tarde."
	MsgPopupClosed     = "Se cerró la ventana de Google antes de finalizar."
	MsgPopupBlocked    = "El navegador bloqueó el popup. Habilita popups e inténtalo de nuevo."
	MsgNotConfigured   = "El proveedor de identidad no está configurado. Revisa tus variables IDP_*."
	MsgGeneric         = "No se pudo iniciar sesión. Intenta nuevamente."
)

// UserMessage classifies a sign-in error into the fixed user-facing message
// set. Credential-specific codes collapse into one generic bad-credentials
// message so the form never reveals which field was wrong.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotConfigured) {
		return MsgNotConfigured
	}

	var perr *ProviderError
	if !errors.As(err, &perr) {
		return MsgGeneric
	}

	switch perr.Code {
	case "INVALID_EMAIL":
		return MsgInvalidEmail
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED":
		return MsgBadCredentials
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return MsgTooManyRequests
	case "POPUP_CLOSED_BY_USER":
		return MsgPopupClosed
	case "POPUP_BLOCKED":
		return MsgPopupBlocked
	default:
		return MsgGeneric
	}
}
