package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"delegate-api/internal/db"
	"delegate-api/internal/mocks"
	"delegate-api/internal/services"
	"delegate-api/internal/types"
)

const (
	testWallet  = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testTokenA  = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	testTokenB  = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
	testBackend = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

func grantRow(id string, expiry, grantedAt time.Time, targets ...string) db.PermissionGrant {
	return db.PermissionGrant{
		ID:                 id,
		WalletAddress:      testWallet,
		BackendKeyPublicID: testBackend,
		Expiry:             pgtype.Timestamptz{Time: expiry, Valid: true},
		AllowedTargets:     targets,
		GrantedAt:          pgtype.Timestamptz{Time: grantedAt, Valid: true},
	}
}

func TestPermissionService_SyncGrant(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockQuerier := mocks.NewMockQuerier(ctrl)
	service := services.NewPermissionService(mockQuerier)
	ctx := context.Background()

	tests := []struct {
		name        string
		params      services.SyncGrantParams
		setupMocks  func()
		wantErr     bool
		errorString string
	}{
		{
			name: "stores a valid grant",
			params: services.SyncGrantParams{
				GrantID:            "grant-1",
				WalletAddress:      testWallet,
				BackendKeyPublicID: testBackend,
				Expiry:             time.Now().Add(time.Hour),
				Scope:              types.GrantScope{AllowedTargets: []string{testTokenA}},
				Identity:           "42",
				Handle:             "alice",
			},
			setupMocks: func() {
				mockQuerier.EXPECT().
					CreatePermissionGrant(ctx, gomock.Any()).
					DoAndReturn(func(_ context.Context, arg db.CreatePermissionGrantParams) (db.PermissionGrant, error) {
						assert.Equal(t, "grant-1", arg.ID)
						assert.Equal(t, []string{testTokenA}, arg.AllowedTargets)
						assert.Equal(t, "42", arg.Identity.String)
						return db.PermissionGrant{ID: arg.ID}, nil
					})
			},
		},
		{
			name: "rejects expired grant",
			params: services.SyncGrantParams{
				WalletAddress:      testWallet,
				BackendKeyPublicID: testBackend,
				Expiry:             time.Now().Add(-time.Minute),
				Scope:              types.GrantScope{AllowedTargets: []string{testTokenA}},
			},
			setupMocks:  func() {},
			wantErr:     true,
			errorString: "expiry must be in the future",
		},
		{
			name: "rejects empty scope",
			params: services.SyncGrantParams{
				WalletAddress:      testWallet,
				BackendKeyPublicID: testBackend,
				Expiry:             time.Now().Add(time.Hour),
			},
			setupMocks:  func() {},
			wantErr:     true,
			errorString: "at least one target",
		},
		{
			name: "rejects malformed target address",
			params: services.SyncGrantParams{
				WalletAddress:      testWallet,
				BackendKeyPublicID: testBackend,
				Expiry:             time.Now().Add(time.Hour),
				Scope:              types.GrantScope{AllowedTargets: []string{"0x123"}},
			},
			setupMocks:  func() {},
			wantErr:     true,
			errorString: "not a valid address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMocks()
			grantID, err := service.SyncGrant(ctx, tt.params)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorString)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, grantID)
		})
	}
}

func TestPermissionService_Resolve(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockQuerier := mocks.NewMockQuerier(ctrl)
	service := services.NewPermissionService(mockQuerier)
	ctx := context.Background()

	now := time.Now()

	t.Run("no grants at all", func(t *testing.T) {
		mockQuerier.EXPECT().ListPermissionGrantsByWallet(ctx, testWallet).Return(nil, nil)

		_, err := service.Resolve(ctx, testWallet, []string{testTokenA})
		require.Error(t, err)
		assert.True(t, types.IsKind(err, types.KindNoMatchingGrant))
		assert.Equal(t, types.DetailNoGrantForWallet, types.DetailOf(err))
	})

	t.Run("all grants expired", func(t *testing.T) {
		mockQuerier.EXPECT().ListPermissionGrantsByWallet(ctx, testWallet).Return([]db.PermissionGrant{
			grantRow("g1", now.Add(-time.Hour), now.Add(-2*time.Hour), testTokenA),
		}, nil)

		_, err := service.Resolve(ctx, testWallet, []string{testTokenA})
		require.Error(t, err)
		assert.Equal(t, types.DetailAllGrantsExpired, types.DetailOf(err))
	})

	t.Run("live grant but scope insufficient", func(t *testing.T) {
		mockQuerier.EXPECT().ListPermissionGrantsByWallet(ctx, testWallet).Return([]db.PermissionGrant{
			grantRow("g1", now.Add(time.Hour), now.Add(-time.Hour), testTokenA),
		}, nil)

		_, err := service.Resolve(ctx, testWallet, []string{testTokenA, testTokenB})
		require.Error(t, err)
		assert.Equal(t, types.DetailScopeInsufficient, types.DetailOf(err))
	})

	t.Run("latest covering grant wins", func(t *testing.T) {
		mockQuerier.EXPECT().ListPermissionGrantsByWallet(ctx, testWallet).Return([]db.PermissionGrant{
			grantRow("older", now.Add(time.Hour), now.Add(-3*time.Hour), testTokenA, testTokenB),
			grantRow("newer", now.Add(time.Hour), now.Add(-time.Hour), testTokenA, testTokenB),
			grantRow("narrow", now.Add(time.Hour), now.Add(-time.Minute), testTokenB),
		}, nil)

		grant, err := service.Resolve(ctx, testWallet, []string{testTokenA})
		require.NoError(t, err)
		assert.Equal(t, "newer", grant.ID)
	})

	t.Run("target comparison ignores checksum casing", func(t *testing.T) {
		mockQuerier.EXPECT().ListPermissionGrantsByWallet(ctx, testWallet).Return([]db.PermissionGrant{
			grantRow("g1", now.Add(time.Hour), now.Add(-time.Hour), testTokenA),
		}, nil)

		grant, err := service.Resolve(ctx, testWallet, []string{strings.ToLower(testTokenA)})
		require.NoError(t, err)
		assert.Equal(t, "g1", grant.ID)
	})
}

func TestPermissionService_Summary(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockQuerier := mocks.NewMockQuerier(ctrl)
	service := services.NewPermissionService(mockQuerier)
	ctx := context.Background()

	now := time.Now()
	mockQuerier.EXPECT().ListPermissionGrantsByWallet(ctx, testWallet).Return([]db.PermissionGrant{
		grantRow("expired", now.Add(-time.Hour), now.Add(-2*time.Hour), testTokenA),
		grantRow("live", now.Add(time.Hour), now.Add(-time.Hour), testTokenA),
	}, nil)

	summary, err := service.Summary(ctx, testWallet, testBackend)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalGrants)
	assert.Equal(t, 1, summary.ActiveGrants)
	assert.True(t, summary.HasBackendGrant)
}
