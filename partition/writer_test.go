package partition_test

import (
	"context"
	"errors"
	"time"

	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/relloyd/trackpipe/constants"
	"github.com/relloyd/trackpipe/logger"
	"github.com/relloyd/trackpipe/partition"
	"github.com/relloyd/trackpipe/partition/mocks"
)

type testRow struct {
	ArtistsName string `parquet:"artists_name"`
	TrackName   string `parquet:"track_name"`
	TrackID     string `parquet:"track_id"`
	Popularity  int64  `parquet:"popularity"`
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

var _ = Describe("Writer", func() {
	var (
		log   logger.Logger
		store *partition.MemoryStorage
		clk   *clock
		w     *partition.Writer[testRow]
		rows  []testRow
		ctx   context.Context
	)

	BeforeEach(func() {
		log = logger.NewLogger("test", "error", false)
		store = partition.NewMemoryStorage(constants.DefaultBucket)
		clk = &clock{t: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
		var err error
		w, err = partition.NewWriter[testRow](log, store, constants.PrefixTopTracks, partition.WithClock(clk.now))
		Expect(err).ToNot(HaveOccurred())
		rows = []testRow{
			{ArtistsName: "X", TrackName: "A", TrackID: "t1", Popularity: 80},
			{ArtistsName: "Y, Z", TrackName: "B", TrackID: "t2", Popularity: 50},
		}
		ctx = context.Background()
	})

	It("writes one object at the partition key with the octet-stream content type", func() {
		key, err := w.Write(ctx, rows)
		Expect(err).ToNot(HaveOccurred())
		Expect(key.String()).To(Equal("top-tracks/2024/01/02/top-tracks_20240102_030405.parquet"))
		Expect(store.Objects).To(HaveLen(1))
		Expect(store.Types[key.String()]).To(Equal("application/octet-stream"))
	})

	It("reads back the rows it wrote field for field and in order", func() {
		key, err := w.Write(ctx, rows)
		Expect(err).ToNot(HaveOccurred())
		got, err := w.Read(ctx, key)
		Expect(err).ToNot(HaveOccurred())
		Expect(got).To(Equal(rows))
	})

	It("gives distinct keys to writes in distinct seconds", func() {
		k1, err := w.Write(ctx, rows)
		Expect(err).ToNot(HaveOccurred())
		clk.t = clk.t.Add(time.Second)
		k2, err := w.Write(ctx, rows)
		Expect(err).ToNot(HaveOccurred())
		Expect(k1).ToNot(Equal(k2))
		Expect(store.Objects).To(HaveLen(2))
	})

	It("reports a collision for a second write in the same second", func() {
		_, err := w.Write(ctx, rows)
		Expect(err).ToNot(HaveOccurred())
		clk.t = clk.t.Add(500 * time.Millisecond)
		_, err = w.Write(ctx, rows[:1])
		Expect(errors.Is(err, partition.ErrKeyCollision)).To(BeTrue())
		Expect(store.Objects).To(HaveLen(1))
	})

	It("reports a collision when another writer already created the key", func() {
		other, err := partition.NewWriter[testRow](log, store, constants.PrefixTopTracks, partition.WithClock(clk.now))
		Expect(err).ToNot(HaveOccurred())
		_, err = other.Write(ctx, rows)
		Expect(err).ToNot(HaveOccurred())
		_, err = w.Write(ctx, rows)
		Expect(errors.Is(err, partition.ErrKeyCollision)).To(BeTrue())
	})

	It("rejects an invalid prefix", func() {
		_, err := partition.NewWriter[testRow](log, store, "a/b")
		Expect(err).To(HaveOccurred())
	})

	Context("with a mock storage backend", func() {
		var (
			ctrl *gomock.Controller
			ms   *mocks.MockStorage
		)

		BeforeEach(func() {
			ctrl = gomock.NewController(GinkgoT())
			ms = mocks.NewMockStorage(ctrl)
		})

		AfterEach(func() {
			ctrl.Finish()
		})

		It("wraps put failures in a StorageWriteError", func() {
			mw, err := partition.NewWriter[testRow](log, ms, constants.PrefixTopTracks, partition.WithClock(clk.now))
			Expect(err).ToNot(HaveOccurred())
			key := "top-tracks/2024/01/02/top-tracks_20240102_030405.parquet"
			ms.EXPECT().URL(key).Return("s3://bucket/" + key)
			ms.EXPECT().Put(gomock.Any(), key, gomock.Any(), "application/octet-stream").Return(errors.New("access denied"))
			_, err = mw.Write(ctx, rows)
			var swe *partition.StorageWriteError
			Expect(errors.As(err, &swe)).To(BeTrue())
			Expect(swe.URL).To(Equal("s3://bucket/" + key))
		})

		It("allows a retry in the same second after a failed put", func() {
			mw, err := partition.NewWriter[testRow](log, ms, constants.PrefixTopTracks, partition.WithClock(clk.now))
			Expect(err).ToNot(HaveOccurred())
			ms.EXPECT().URL(gomock.Any()).Return("s3://bucket/k").Times(2)
			gomock.InOrder(
				ms.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("timeout")),
				ms.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil),
			)
			_, err = mw.Write(ctx, rows)
			Expect(err).To(HaveOccurred())
			_, err = mw.Write(ctx, rows)
			Expect(err).ToNot(HaveOccurred())
		})
	})
})

var _ = Describe("MemoryStorage", func() {
	It("moves objects and lists by prefix", func() {
		ctx := context.Background()
		s := partition.NewMemoryStorage("b")
		Expect(s.Put(ctx, "top-tracks/a", []byte("1"), "x")).To(Succeed())
		Expect(s.Put(ctx, "top-tracks/b", []byte("2"), "x")).To(Succeed())
		Expect(s.Move(ctx, "top-tracks/a", "archive/top-tracks/a")).To(Succeed())
		Expect(s.List(ctx, "top-tracks/")).To(Equal([]string{"top-tracks/b"}))
		_, err := s.Get(ctx, "top-tracks/a")
		Expect(errors.Is(err, partition.ErrKeyNotFound)).To(BeTrue())
		Expect(s.URL("k")).To(Equal("mem://b/k"))
	})
})
