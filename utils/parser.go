package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/go-playground/validator/v10"

	"github.com/barkprotocol/blinks/types"
)

// MaxBodyBytes bounds every JSON request body
const MaxBodyBytes = 16 * 1024

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Register custom validators
	validate.RegisterValidation("solana_pubkey", validateSolanaPubkeyTag)
	validate.RegisterValidation("solana_signature", validateSolanaSignatureTag)
	validate.RegisterValidation("positive_decimal", validatePositiveDecimalTag)
	validate.RegisterValidation("cluster", validateClusterTag)
}

// ParseBody decodes a JSON body into dst and validates it with its struct tags.
// Unknown fields are rejected.
func ParseBody(body io.Reader, dst any) error {
	dec := json.NewDecoder(io.LimitReader(body, MaxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return types.WrapError(types.ErrInvalidPayload, "invalid request body", err)
	}

	if err := validate.Struct(dst); err != nil {
		return types.WrapError(types.ErrInvalidPayload, fmt.Sprintf("invalid request body: %s", invalidFields(err)), err)
	}

	return nil
}

// ValidateStruct runs the struct-tag validation only
func ValidateStruct(v any) error {
	return validate.Struct(v)
}

// ValidateConfig validates a loaded configuration
func ValidateConfig(cfg *types.Config) error {
	if err := validate.Struct(cfg); err != nil {
		return &types.ActionError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("validation failed: %s", invalidFields(err)),
			Err:     err,
		}
	}

	seen := make(map[string]struct{}, len(cfg.Actions))
	for _, a := range cfg.Actions {
		if _, dup := seen[a.Name]; dup {
			return types.NewError(types.ErrConfigError, fmt.Sprintf("duplicate action %q", a.Name))
		}
		seen[a.Name] = struct{}{}

		if _, err := ResolveAsset(cfg, a.Asset); err != nil {
			return types.WrapError(types.ErrConfigError, fmt.Sprintf("action %q", a.Name), err)
		}
	}

	ruleIDs := make(map[string]struct{}, len(cfg.Rules))
	for _, r := range cfg.Rules {
		if r.ID == "" {
			continue
		}
		if _, dup := ruleIDs[r.ID]; dup {
			return types.NewError(types.ErrConfigError, fmt.Sprintf("duplicate rule id %q", r.ID))
		}
		ruleIDs[r.ID] = struct{}{}
	}

	return nil
}

func invalidFields(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(fields, ", ")
}

// Custom validator functions
func validateSolanaPubkeyTag(fl validator.FieldLevel) bool {
	_, err := ParseAddress(fl.Field().String())
	return err == nil
}

func validateSolanaSignatureTag(fl validator.FieldLevel) bool {
	_, err := solana.SignatureFromBase58(fl.Field().String())
	return err == nil
}

func validatePositiveDecimalTag(fl validator.FieldLevel) bool {
	_, err := ValidateAmount(fl.Field().String())
	return err == nil
}

func validateClusterTag(fl validator.FieldLevel) bool {
	return types.Cluster(fl.Field().String()).IsValid()
}
