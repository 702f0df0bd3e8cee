package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
)

const (
	profilesCollection      = "profiles"
	postsCollection         = "posts"
	categoriesCollection    = "categories"
	locationsCollection     = "locations"
	conversationsCollection = "conversations"
	participantsCollection  = "conversation_participants"
	messagesCollection      = "messages"
	notificationsCollection = "notifications"
)

func countQuery(ctx context.Context, q firestore.Query) (int64, error) {
	result, err := q.NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return 0, err
	}
	v, ok := result["total"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("unexpected count result %T", result["total"])
	}
	return v.GetIntegerValue(), nil
}

// bulkApply runs one write per document through a BulkWriter and waits for all
// of them.
func bulkApply(ctx context.Context, client *firestore.Client, refs []*firestore.DocumentRef, write func(*firestore.BulkWriter, *firestore.DocumentRef) (*firestore.BulkWriterJob, error)) error {
	if len(refs) == 0 {
		return nil
	}

	bw := client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(refs))
	for _, ref := range refs {
		job, err := write(bw, ref)
		if err != nil {
			bw.End()
			return err
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return err
		}
	}
	return nil
}

func refsOf(docs []*firestore.DocumentSnapshot) []*firestore.DocumentRef {
	refs := make([]*firestore.DocumentRef, len(docs))
	for i, doc := range docs {
		refs[i] = doc.Ref
	}
	return refs
}
