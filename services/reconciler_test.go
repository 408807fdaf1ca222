package services

import (
	"testing"
	"time"

	"github.com/fenilmodi00/nuri-bid-crawler/models"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	now := testNow
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		status   string
		deadline *time.Time
		stored   *models.BidMeta
		want     models.RowAction
	}{
		{"new row", "입찰개시", &future, nil, models.ActionCollect},
		{"new row without deadline", "입찰개시", nil, nil, models.ActionCollect},
		{"expired unknown row", "입찰개시", &past, nil, models.ActionSkip},
		{"deadline equal to now counts as expired", "입찰개시", &now, nil, models.ActionSkip},
		{"expired row with empty stored deadline", "입찰개시", &past, &models.BidMeta{Status: "입찰개시"}, models.ActionDelete},
		{"expired row with stored deadline", "입찰개시", &past, &models.BidMeta{Status: "입찰개시", Deadline: "2024/05/20 11:00"}, models.ActionSkip},
		{"expired row whose status changed", "입찰마감", &past, &models.BidMeta{Status: "입찰개시", Deadline: "2024/05/20 11:00"}, models.ActionSkip},
		{"status changed", "입찰마감", &future, &models.BidMeta{Status: "입찰개시", Deadline: "2024/05/20 13:00"}, models.ActionDelete},
		{"status changed without deadline", "입찰마감", nil, &models.BidMeta{Status: "입찰개시"}, models.ActionDelete},
		{"deadline announced", "입찰개시", &future, &models.BidMeta{Status: "입찰개시"}, models.ActionPatchDeadline},
		{"unchanged", "입찰개시", &future, &models.BidMeta{Status: "입찰개시", Deadline: "2024/05/20 13:00"}, models.ActionSkip},
		{"unchanged without any deadline", "입찰개시", nil, &models.BidMeta{Status: "입찰개시"}, models.ActionSkip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Decide(tt.status, tt.deadline, tt.stored, now))
		})
	}
}

func TestDecideProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	statuses := gen.OneConstOf("입찰개시", "입찰마감", "개찰완료")
	offsets := gen.Int64Range(-72, 72)

	properties.Property("an expired listing deadline never collects or patches", prop.ForAll(
		func(webStatus, storedStatus string, hours int64, stored bool, storedDeadline bool) bool {
			deadline := testNow.Add(-time.Duration(hours*hours) * time.Minute)
			var meta *models.BidMeta
			if stored {
				meta = &models.BidMeta{Status: storedStatus}
				if storedDeadline {
					meta.Deadline = "2024/05/19 10:00"
				}
			}
			action := Decide(webStatus, &deadline, meta, testNow)
			return action != models.ActionCollect && action != models.ActionPatchDeadline
		},
		statuses, statuses, offsets, gen.Bool(), gen.Bool(),
	))

	properties.Property("a stored record with the same status and a deadline is left alone", prop.ForAll(
		func(status string, hours int64, hasDeadline bool) bool {
			var deadline *time.Time
			if hasDeadline {
				d := testNow.Add(time.Duration(hours) * time.Hour)
				deadline = &d
			}
			meta := &models.BidMeta{Status: status, Deadline: "2024/05/21 10:00"}
			return Decide(status, deadline, meta, testNow) == models.ActionSkip
		},
		statuses, offsets, gen.Bool(),
	))

	properties.Property("unknown rows with an open deadline are collected", prop.ForAll(
		func(status string, hours int64) bool {
			d := testNow.Add(time.Duration(hours+1) * time.Hour)
			return Decide(status, &d, nil, testNow) == models.ActionCollect
		},
		statuses, gen.Int64Range(0, 720),
	))

	properties.TestingRun(t)
}

func TestMergeDetail(t *testing.T) {
	row := ListingRow{
		BidNumber:    "R24BK00000001",
		Title:        "청사 청소용역",
		Status:       "입찰개시",
		DeadlineText: "2024/05/23 10:00",
	}

	t.Run("detail deadline wins", func(t *testing.T) {
		info := models.DetailInfo{
			Fields: models.NewFieldSet(
				models.Field{Label: "공고명", Value: "detail title"},
				models.Field{Label: DeadlineFieldLabel, Value: "2024/05/24 18:00"},
			),
			Attachments: []string{"공고서.hwp (10KB)"},
		}
		rec := MergeDetail(row, info)
		require.Equal(t, "R24BK00000001", rec.BidNumber)
		require.Equal(t, "청사 청소용역", rec.Title)
		require.Equal(t, "입찰개시", rec.Status)
		require.Equal(t, "2024/05/24 18:00", rec.Deadline)
		require.Equal(t, []string{"공고서.hwp (10KB)"}, rec.Attachments)
		require.Equal(t, 2, rec.Fields.Len())
	})

	t.Run("listing deadline is the fallback", func(t *testing.T) {
		info := models.DetailInfo{
			Fields: models.NewFieldSet(
				models.Field{Label: "공고명", Value: "detail title"},
				models.Field{Label: DeadlineFieldLabel, Value: ""},
			),
		}
		rec := MergeDetail(row, info)
		require.Equal(t, "2024/05/23 10:00", rec.Deadline)
		require.NotNil(t, rec.Attachments)
		require.Empty(t, rec.Attachments)
	})
}
