package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/tokengate/pkg/cryptox"
	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
)

// Keys are the symmetric keys derived from the configured secret.
type Keys struct {
	Codec  *jwtx.Codec
	Sealer *cryptox.Sealer
}

// InitKeys derives the token signing key and the cookie sealing key from
// cfg.SecretKey.
//
// Without a secret a random one is generated, so tokens and in-flight logins
// do not survive a restart and replicas cannot verify each other's tokens.
func InitKeys(cfg Config, logger *slog.Logger) (*Keys, error) {
	secret := []byte(cfg.SecretKey)
	if len(secret) == 0 {
		var err error
		secret, err = cryptox.GenerateSecret()
		if err != nil {
			return nil, err
		}
		logger.Warn("AUTH_SECRET_KEY is not set; using an ephemeral key, all tokens are invalidated on restart")
	}

	signingKey, err := cryptox.DeriveKey(secret, cryptox.PurposeTokenSigning)
	if err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	sealKey, err := cryptox.DeriveKey(secret, cryptox.PurposeCookieSeal)
	if err != nil {
		return nil, fmt.Errorf("derive sealing key: %w", err)
	}

	codec, err := jwtx.NewCodec(jwtx.CodecOptions{Key: signingKey, Issuer: cfg.Issuer})
	if err != nil {
		return nil, err
	}
	sealer, err := cryptox.NewSealer(sealKey)
	if err != nil {
		return nil, err
	}

	logger.Info("token keys ready", "algorithm", "HS256", "issuer", cfg.Issuer)
	return &Keys{Codec: codec, Sealer: sealer}, nil
}
