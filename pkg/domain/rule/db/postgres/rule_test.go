package postgres_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	testenv "github.com/pharmbio/pipeline-monitor/pkg/conn/db/postgres/pool/testenv"
	"github.com/pharmbio/pipeline-monitor/pkg/domain"
	domerr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors"
	"github.com/pharmbio/pipeline-monitor/pkg/domain/internal/db/postgres/tables"
	kpgrule "github.com/pharmbio/pipeline-monitor/pkg/domain/rule/db/postgres"
	"github.com/pharmbio/pipeline-monitor/pkg/utils/pointer"
	"github.com/pharmbio/pipeline-monitor/pkg/utils/try"
)

func TestResolve(t *testing.T) {
	poolBroaker := testenv.NewPoolBroaker(context.Background(), t)

	given := tables.Operation{
		Rules: []tables.Rule{
			{Id: 1, Project: "proj", CellLine: "U2OS", ChannelMapId: 7, PipelineName: "exact"},
			{Id: 2, Project: "proj", CellLine: "*", ChannelMapId: 7, PipelineName: "any-cell-line"},
			{Id: 3, Project: "proj", CellLine: "U2OS", ChannelMapId: -1, PipelineName: "any-channel-map"},
			{
				Id: 4, Project: "proj", CellLine: "*", ChannelMapId: -1, PipelineName: "anything",
				Metadata: `{"cp_version": "v4.2", "priority": "3", "run_on_dardel": true, "well_filter": "A01,B02"}`,
			},
			{Id: 5, Project: "proj", CellLine: "A549", ChannelMapId: 7, PipelineName: "other-cell-line"},
			{Id: 6, Project: "proj", CellLine: "U2OS", ChannelMapId: 8, PipelineName: "other-channel-map"},
			{Id: 7, Project: "other", CellLine: "*", ChannelMapId: -1, PipelineName: "other-project"},
			{Id: 8, Project: "proj", CellLine: "U2OS", ChannelMapId: 0, PipelineName: "channel-map-zero"},
		},
	}

	type When struct {
		Project      string
		CellLine     string
		ChannelMapId *int64
	}

	theory := func(when When, then []domain.AutomationRule) func(*testing.T) {
		return func(t *testing.T) {
			ctx := context.Background()
			pool := poolBroaker.GetPool(ctx, t)
			if err := given.Apply(ctx, pool); err != nil {
				t.Fatal(err)
			}

			testee := kpgrule.New(pool)
			actual := try.To(testee.Resolve(ctx, when.Project, when.CellLine, when.ChannelMapId)).OrFatal(t)

			if !reflect.DeepEqual(actual, then) {
				t.Errorf("unexpected rules:\n===actual===\n%+v\n===expected===\n%+v", actual, then)
			}
		}
	}

	anything := domain.AutomationRule{
		Id: 4, Project: "proj", CellLine: "*", ChannelMapId: -1, PipelineName: "anything",
		Meta: domain.RuleMeta{
			CpVersion:  "v4.2",
			Priority:   "3",
			Flags:      domain.RunFlags{Pelle: true},
			WellFilter: domain.Filter{"A01", "B02"},
		},
	}

	t.Run("literal and wildcard matches all fire, in order of id", theory(
		When{Project: "proj", CellLine: "U2OS", ChannelMapId: pointer.Ref[int64](7)},
		[]domain.AutomationRule{
			{Id: 1, Project: "proj", CellLine: "U2OS", ChannelMapId: 7, PipelineName: "exact"},
			{Id: 2, Project: "proj", CellLine: "*", ChannelMapId: 7, PipelineName: "any-cell-line"},
			{Id: 3, Project: "proj", CellLine: "U2OS", ChannelMapId: -1, PipelineName: "any-channel-map"},
			anything,
		},
	))

	t.Run("an acquisition without cell line matches wildcard rules only", theory(
		When{Project: "proj", CellLine: "", ChannelMapId: pointer.Ref[int64](7)},
		[]domain.AutomationRule{
			{Id: 2, Project: "proj", CellLine: "*", ChannelMapId: 7, PipelineName: "any-cell-line"},
			anything,
		},
	))

	t.Run("an acquisition without channel map matches wildcard channel map rules only", theory(
		When{Project: "proj", CellLine: "U2OS", ChannelMapId: nil},
		[]domain.AutomationRule{
			{Id: 3, Project: "proj", CellLine: "U2OS", ChannelMapId: -1, PipelineName: "any-channel-map"},
			anything,
		},
	))

	t.Run("rules of other projects never match", theory(
		When{Project: "nothing", CellLine: "U2OS", ChannelMapId: pointer.Ref[int64](7)},
		[]domain.AutomationRule{},
	))

	t.Run("a rule with malformed metadata is returned with ErrInvalid, and does not hide the others", func(t *testing.T) {
		ctx := context.Background()
		pool := poolBroaker.GetPool(ctx, t)
		if err := (tables.Operation{
			Rules: []tables.Rule{
				{Id: 1, Project: "proj", CellLine: "*", ChannelMapId: -1, PipelineName: "valid", Metadata: `{"cp_version": "v4"}`},
				{Id: 2, Project: "proj", CellLine: "*", ChannelMapId: -1, PipelineName: "not-object", Metadata: `["not", "object"]`},
				{Id: 3, Project: "proj", CellLine: "*", ChannelMapId: -1, PipelineName: "bad-priority", Metadata: `{"priority": [1]}`},
			},
		}).Apply(ctx, pool); err != nil {
			t.Fatal(err)
		}

		actual := try.To(kpgrule.New(pool).Resolve(ctx, "proj", "U2OS", pointer.Ref[int64](7))).OrFatal(t)
		if len(actual) != 3 {
			t.Fatalf("unexpected rules: %+v", actual)
		}

		if actual[0].MetaErr != nil || actual[0].Meta.CpVersion != "v4" {
			t.Errorf("rule #1: %+v", actual[0])
		}
		for _, r := range actual[1:] {
			if !errors.Is(r.MetaErr, domerr.ErrInvalid) {
				t.Errorf("rule #%d: unexpected MetaErr: %v", r.Id, r.MetaErr)
			}
			if !reflect.DeepEqual(r.Meta, domain.RuleMeta{}) {
				t.Errorf("rule #%d: Meta is not zero: %+v", r.Id, r.Meta)
			}
		}
	})
}
