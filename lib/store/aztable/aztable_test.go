package aztable

import (
	"context"
	"errors"
	"tablestream/lib/harvest/query"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	options  *aztables.ListEntitiesOptions
	response aztables.ListEntitiesResponse
	err      error
}

func (f *fakeLister) NewListEntitiesPager(options *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse] {
	f.options = options
	return runtime.NewPager(runtime.PagingHandler[aztables.ListEntitiesResponse]{
		More: func(aztables.ListEntitiesResponse) bool { return false },
		Fetcher: func(context.Context, *aztables.ListEntitiesResponse) (aztables.ListEntitiesResponse, error) {
			return f.response, f.err
		},
	})
}

func ptr(s string) *string {
	return &s
}

func TestServiceURL(t *testing.T) {
	assert.Equal(t, "https://diag.table.core.windows.net", Config{AccountName: "diag"}.ServiceURL())
	assert.Equal(t, "https://diag.table.core.chinacloudapi.cn", Config{AccountName: "diag", Endpoint: "core.chinacloudapi.cn"}.ServiceURL())
}

func TestNewRequiresCredential(t *testing.T) {
	_, err := New(Config{AccountName: "diag"})
	assert.ErrorIs(t, err, ErrCredential)
	_, err = New(Config{})
	assert.Error(t, err)

	store, err := New(Config{AccountName: "diag", SASToken: "?sv=2019-02-02&sig=abc"})
	require.NoError(t, err)
	assert.Same(t, store.client("WADLogsTable"), store.client("WADLogsTable"))
}

func TestQueryPageDecodesEntities(t *testing.T) {
	lister := &fakeLister{response: aztables.ListEntitiesResponse{
		Entities: [][]byte{
			[]byte(`{"odata.etag":"W/\"1\"","PartitionKey":"0638081281800000000","RowKey":"r1","Timestamp@odata.type":"Edm.DateTime","Timestamp":"2023-01-01T00:03:10Z","Level":2,"Message":"hello"}`),
		},
		NextPartitionKey: ptr("1!28!MDYzODA4MTI4MjAwMDAwMDAwMA--"),
		NextRowKey:       ptr("1!8!cjI-"),
	}}
	top := int32(50)

	page, err := queryPage(context.Background(), lister, "(PartitionKey gt '0')", &top, nil)
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, query.Row{
		"PartitionKey": "0638081281800000000",
		"RowKey":       "r1",
		"Timestamp":    "2023-01-01T00:03:10Z",
		"Level":        float64(2),
		"Message":      "hello",
	}, page.Rows[0])
	assert.Equal(t, &query.Continuation{NextPartitionKey: "1!28!MDYzODA4MTI4MjAwMDAwMDAwMA--", NextRowKey: "1!8!cjI-"}, page.Next)

	assert.Equal(t, "(PartitionKey gt '0')", *lister.options.Filter)
	assert.Equal(t, int32(50), *lister.options.Top)
	assert.Nil(t, lister.options.NextPartitionKey)
	assert.Nil(t, lister.options.NextRowKey)
}

func TestQueryPageResumesContinuation(t *testing.T) {
	lister := &fakeLister{}
	page, err := queryPage(context.Background(), lister, "", nil, &query.Continuation{NextPartitionKey: "p", NextRowKey: "r"})
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
	assert.Nil(t, page.Next)

	assert.Nil(t, lister.options.Filter)
	assert.Nil(t, lister.options.Top)
	assert.Equal(t, "p", *lister.options.NextPartitionKey)
	assert.Equal(t, "r", *lister.options.NextRowKey)
}

func TestQueryPageErrors(t *testing.T) {
	cause := errors.New("403 forbidden")
	_, err := queryPage(context.Background(), &fakeLister{err: cause}, "", nil, nil)
	assert.ErrorIs(t, err, cause)

	_, err = queryPage(context.Background(), &fakeLister{response: aztables.ListEntitiesResponse{Entities: [][]byte{[]byte("{")}}}, "", nil, nil)
	assert.Error(t, err)
}
