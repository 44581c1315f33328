package es

import (
	"context"
	"errors"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/sortorder"
	"github.com/goccy/go-json"
)

type MessageRepo interface {
	IndexMessage(ctx context.Context, msg *MessageES) error
	SearchMessages(ctx context.Context, teamID uint64, queryText string, size int) ([]*MessageES, error)
	DeleteMessage(ctx context.Context, id string) error
}

type MessageRepoImpl struct {
	client *elasticsearch.TypedClient
}

func NewMessageRepo(client *elasticsearch.TypedClient) MessageRepo {
	return &MessageRepoImpl{client: client}
}

func (s *MessageRepoImpl) IndexMessage(ctx context.Context, msg *MessageES) error {
	_, err := s.client.Index(MessageIndex).
		Id(msg.ID).
		Document(msg).
		Do(ctx)
	return err
}

// SearchMessages 团队维度的消息全文检索，按时间倒序
func (s *MessageRepoImpl) SearchMessages(ctx context.Context, teamID uint64, queryText string, size int) ([]*MessageES, error) {
	resp, err := s.client.Search().
		Index(MessageIndex).
		Query(&types.Query{
			Bool: &types.BoolQuery{
				Must: []types.Query{
					{
						Match: map[string]types.MatchQuery{
							"content": {Query: queryText},
						},
					},
				},
				Filter: []types.Query{
					{
						Term: map[string]types.TermQuery{
							"team_id": {Value: teamID},
						},
					},
				},
			},
		}).
		Sort(types.SortOptions{SortOptions: map[string]types.FieldSort{
			"created_at": {Order: &sortorder.Desc},
		}}).
		Size(size).
		Do(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*MessageES, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		if hit.Source_ == nil {
			continue
		}
		var msg MessageES
		if err = json.Unmarshal(hit.Source_, &msg); err != nil {
			continue
		}
		results = append(results, &msg)
	}
	return results, nil
}

func (s *MessageRepoImpl) DeleteMessage(ctx context.Context, id string) error {
	_, err := s.client.Delete(MessageIndex, id).Do(ctx)
	if err != nil {
		var e *types.ElasticsearchError
		if errors.As(err, &e) {
			if e.Status == NotFoundCode {
				return nil
			}
		}
		return err
	}
	return nil
}
