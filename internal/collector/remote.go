package collector

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/Azure/azure-storage-blob-go/azblob"

	apperrors "github.com/driftscope/driftscope/internal/errors"
	"github.com/driftscope/driftscope/pkg/types"
)

// BlobCollector downloads exported configuration documents from an Azure
// Storage container. Documents follow the same layout as FileCollector:
// <prefix>/<subscription>/<resource-group>.json inside the container.
type BlobCollector struct {
	storageAccount string
	containerName  string
	prefix         string
	credential     azblob.Credential
}

// NewBlobCollector creates a collector for the given storage account and
// container. A nil credential uses anonymous access, which also covers
// SAS-token URLs.
func NewBlobCollector(storageAccount, containerName, prefix string, credential azblob.Credential) *BlobCollector {
	if credential == nil {
		credential = azblob.NewAnonymousCredential()
	}
	return &BlobCollector{
		storageAccount: storageAccount,
		containerName:  containerName,
		prefix:         prefix,
		credential:     credential,
	}
}

func (c *BlobCollector) Name() string {
	return "azure-blob"
}

// Fetch downloads and decodes the scope's configuration document. Download
// failures are transient; a document that fails to decode is not.
func (c *BlobCollector) Fetch(ctx context.Context, scope types.Scope) (*types.Configuration, error) {
	if err := scope.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "invalid scope", err)
	}

	blobKey := scope.SubscriptionID + "/" + scope.ResourceGroup + ".json"
	if c.prefix != "" {
		blobKey = c.prefix + "/" + blobKey
	}
	blobURLString := fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s",
		c.storageAccount, c.containerName, blobKey)
	parsedURL, err := url.Parse(blobURLString)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "failed to build blob URL", err)
	}

	blobURL := azblob.NewBlobURL(*parsedURL, azblob.NewPipeline(c.credential, azblob.PipelineOptions{}))
	response, err := blobURL.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindCollectorUnavailable,
			fmt.Sprintf("failed to download configuration document %s", blobURLString), err)
	}
	body := response.Body(azblob.RetryReaderOptions{})
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindCollectorUnavailable, "failed to read blob content", err)
	}

	return decodeConfiguration(data)
}
