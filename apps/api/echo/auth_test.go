package echoapi

import (
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/uniforme/core"
	"github.com/trezcool/uniforme/tests"
)

func TestClaims_Validate(t *testing.T) {
	validate := testutil.NewValidator()

	tests := []struct {
		name    string
		claims  Claims
		wantTag string
		wantErr bool
	}{
		{name: "valid", claims: Claims{StandardClaims: jwt.StandardClaims{Subject: "t1"}, Role: string(core.RoleTeacher)}},
		{name: "lowercase role", claims: Claims{StandardClaims: jwt.StandardClaims{Subject: "t1"}, Role: "admin"}},
		{name: "missing role", claims: Claims{StandardClaims: jwt.StandardClaims{Subject: "t1"}}, wantTag: "required", wantErr: true},
		{name: "unknown role", claims: Claims{StandardClaims: jwt.StandardClaims{Subject: "t1"}, Role: "BOSS"}, wantTag: "role", wantErr: true},
		{name: "missing subject", claims: Claims{Role: string(core.RoleAdmin)}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.claims.Validate(validate)
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tc.wantTag != "" {
				verrs, ok := err.(validator.ValidationErrors)
				require.True(t, ok, "want validator.ValidationErrors, got %T", err)
				require.Len(t, verrs, 1)
				assert.Equal(t, "role", verrs[0].Field())
				assert.Equal(t, tc.wantTag, verrs[0].Tag())
			}
		})
	}
}
