package gcpauth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// TokenProvider - Veo REST 호출용 bearer token 발급
// 폴링 루프가 매 iteration마다 AccessToken을 호출하므로 만료된 토큰은
// 여기서 자동으로 refresh됨
type TokenProvider struct {
	source oauth2.TokenSource
}

// NewTokenProvider - credential 해석 후 token source 생성
func NewTokenProvider(ctx context.Context) (*TokenProvider, error) {
	credsData, err := credentialsJSON()
	if err != nil {
		return nil, err
	}

	if credsData != nil {
		creds, err := google.CredentialsFromJSON(ctx, credsData, CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("failed to parse credentials: %w", err)
		}
		return &TokenProvider{source: creds.TokenSource}, nil
	}

	source, err := google.DefaultTokenSource(ctx, CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve default credentials: %w", err)
	}
	return &TokenProvider{source: source}, nil
}

// AccessToken - 현재 유효한 access token 반환 (만료 시 자동 refresh)
func (p *TokenProvider) AccessToken(ctx context.Context) (string, error) {
	token, err := p.source.Token()
	if err != nil {
		return "", fmt.Errorf("failed to obtain access token: %w", err)
	}
	return token.AccessToken, nil
}
