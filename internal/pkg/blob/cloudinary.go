package blob

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// Client define o contrato do Blob Adapter: gravação de um objeto nomeado.
// A chave é determinística (`folder_name/nome_do_arquivo`), portanto uma
// regravação da mesma chave em retry é segura (last-write-wins).
type Client interface {
	Write(ctx context.Context, key string, content []byte, contentType string) error
}

// CloudinaryClient é a implementação concreta da interface Client,
// usando o Cloudinary como object store dos documentos do usuário.
type CloudinaryClient struct {
	cld     *cloudinary.Cloudinary
	timeout time.Duration
}

// NewCloudinaryClient cria e retorna uma nova instância do cliente de blob.
// Esta função é chamada no main.go.
func NewCloudinaryClient(cloudName, apiKey, apiSecret string, timeout time.Duration) (*CloudinaryClient, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("credenciais do Cloudinary não configuradas")
	}

	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("falha ao inicializar o cliente Cloudinary: %w", err)
	}

	return &CloudinaryClient{cld: cld, timeout: timeout}, nil
}

// Write grava o conteúdo sob a chave informada como um asset "raw".
// O PublicID é a própria chave, o que torna a operação idempotente:
// um retry da fase dois sobrescreve o mesmo objeto em vez de duplicá-lo.
func (c *CloudinaryClient) Write(ctx context.Context, key string, content []byte, contentType string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.cld.Upload.Upload(ctxTimeout, bytes.NewReader(content), uploader.UploadParams{
		PublicID:     key,
		ResourceType: "raw",
		Overwrite:    api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("falha ao gravar o objeto '%s': %w", key, err)
	}

	return nil
}
