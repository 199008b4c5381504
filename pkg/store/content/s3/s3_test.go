package s3

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"NoSuchKey", &types.NoSuchKey{}, true},
		{"WrappedNoSuchKey", fmt.Errorf("get: %w", &types.NoSuchKey{}), true},
		{"NotFound", &types.NotFound{}, true},
		{"GenericNotFoundCode", &smithy.GenericAPIError{Code: "NotFound"}, true},
		{"AccessDenied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"Plain", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotFound(tt.err))
		})
	}
}

func TestObjectKeyPrefix(t *testing.T) {
	store := &S3ContentStore{keyPrefix: "vault/"}
	assert.Equal(t, "vault/objects/ab/cd/abcd", store.objectKey("objects/ab/cd/abcd"))
}
