// Package aztable implements query.Store on Azure Table Storage.
package aztable

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"tablestream/lib/harvest/query"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/pkg/errors"
)

const (
	DefaultEndpoint = "core.windows.net"
	UserAgent       = "tablestream-aztable"

	odataPrefix = "odata."
)

var ErrCredential = errors.New("either access key or sas token is required")

type Config struct {
	AccountName string
	AccessKey   string
	SASToken    string
	Endpoint    string
}

//ServiceURL is https://<account>.table.<endpoint>
func (c Config) ServiceURL() string {
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return fmt.Sprintf("https://%s.table.%s", c.AccountName, endpoint)
}

//lister is the part of *aztables.Client a page fetch needs.
type lister interface {
	NewListEntitiesPager(options *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse]
}

type Store struct {
	service *aztables.ServiceClient
	clients map[string]*aztables.Client
}

//New create a service client authorized by shared key, or by the SAS token when no key is set.
func New(config Config) (*Store, error) {
	if config.AccountName == "" {
		return nil, errors.New("account name is required")
	}
	options := &aztables.ClientOptions{ClientOptions: azcore.ClientOptions{
		Telemetry: policy.TelemetryOptions{ApplicationID: UserAgent},
	}}
	var (
		service *aztables.ServiceClient
		err     error
	)
	switch {
	case config.AccessKey != "":
		credential, cErr := aztables.NewSharedKeyCredential(config.AccountName, config.AccessKey)
		if cErr != nil {
			return nil, errors.WithMessage(cErr, "invalid access key")
		}
		service, err = aztables.NewServiceClientWithSharedKey(config.ServiceURL(), credential, options)
	case config.SASToken != "":
		service, err = aztables.NewServiceClientWithNoCredential(config.ServiceURL()+"?"+strings.TrimPrefix(config.SASToken, "?"), options)
	default:
		return nil, ErrCredential
	}
	if err != nil {
		return nil, errors.WithMessage(err, "can't create table service client")
	}
	return &Store{service: service, clients: map[string]*aztables.Client{}}, nil
}

func (s *Store) client(table string) *aztables.Client {
	client, ok := s.clients[table]
	if !ok {
		client = s.service.NewClient(table)
		s.clients[table] = client
	}
	return client
}

//QueryPage fetch a single page, resuming at next when it is set.
func (s *Store) QueryPage(ctx context.Context, table string, filter string, top *int32, next *query.Continuation) (query.Page, error) {
	return queryPage(ctx, s.client(table), filter, top, next)
}

func queryPage(ctx context.Context, client lister, filter string, top *int32, next *query.Continuation) (query.Page, error) {
	pager := client.NewListEntitiesPager(listOptions(filter, top, next))
	response, err := pager.NextPage(ctx)
	if err != nil {
		return query.Page{}, err
	}
	return decodePage(response)
}

func listOptions(filter string, top *int32, next *query.Continuation) *aztables.ListEntitiesOptions {
	options := &aztables.ListEntitiesOptions{Top: top}
	if filter != "" {
		options.Filter = &filter
	}
	if !next.Empty() {
		options.NextPartitionKey = optional(next.NextPartitionKey)
		options.NextRowKey = optional(next.NextRowKey)
	}
	return options
}

func decodePage(response aztables.ListEntitiesResponse) (query.Page, error) {
	page := query.Page{Rows: make([]query.Row, 0, len(response.Entities))}
	for _, entity := range response.Entities {
		row, err := decodeEntity(entity)
		if err != nil {
			return query.Page{}, err
		}
		page.Rows = append(page.Rows, row)
	}
	if response.NextPartitionKey != nil || response.NextRowKey != nil {
		page.Next = &query.Continuation{NextPartitionKey: value(response.NextPartitionKey), NextRowKey: value(response.NextRowKey)}
	}
	return page, nil
}

//decodeEntity keep every property verbatim but the odata annotations.
func decodeEntity(entity []byte) (query.Row, error) {
	row := query.Row{}
	if err := json.Unmarshal(entity, &row); err != nil {
		return nil, errors.WithMessage(err, "can't decode entity")
	}
	for key := range row {
		if strings.HasPrefix(key, odataPrefix) || strings.Contains(key, "@"+odataPrefix) {
			delete(row, key)
		}
	}
	return row, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
