package providers

import (
	"github.com/samber/do/v2"

	"github.com/inesosoares6/shopping-list-v2/internal/auth"
	"github.com/inesosoares6/shopping-list-v2/internal/config"
	"github.com/inesosoares6/shopping-list-v2/internal/logger"
)

// AuthKey wraps the token signing key bytes.
type AuthKey []byte

// ProvideAuthKey decodes the configured key, or loads or generates the key
// file in the data directory.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Auth.KeyHex != "" {
		key, err := auth.DecodeKey(cfg.Auth.KeyHex)
		if err != nil {
			return nil, err
		}
		log.Info("Authentication key loaded from configuration")
		return AuthKey(key), nil
	}

	key, err := auth.LoadOrGenerateKey(cfg.Store.DataPath)
	if err != nil {
		return nil, err
	}

	log.Info("Authentication key loaded",
		"dir", cfg.Store.DataPath,
		"token_duration", cfg.Auth.TokenDuration,
	)

	return AuthKey(key), nil
}

// ProvideTokenService provides the PASETO token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	authKey := do.MustInvoke[AuthKey](i)

	return auth.NewTokenService([]byte(authKey), cfg.Auth.TokenDuration)
}

// ProvideAccounts provides the account registry kept in the tree.
func ProvideAccounts(i do.Injector) (*auth.Accounts, error) {
	engine := do.MustInvoke[*EngineHandle](i)
	tokens := do.MustInvoke[*auth.TokenService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return auth.NewAccounts(engine.Engine, tokens, log.Logger), nil
}
