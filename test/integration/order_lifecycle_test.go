package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/mealorders/internal/domain"
	"github.com/vladislavdragonenkov/mealorders/internal/mealdb"
	"github.com/vladislavdragonenkov/mealorders/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/mealorders/internal/metrics"
	"github.com/vladislavdragonenkov/mealorders/internal/service/orders"
	"github.com/vladislavdragonenkov/mealorders/internal/service/outbox"
	"github.com/vladislavdragonenkov/mealorders/internal/storage/memory"
	"github.com/vladislavdragonenkov/mealorders/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/mealorders/internal/view"
)

type actionResponse struct {
	Order   *domain.Order `json:"order"`
	Outcome string        `json:"outcome"`
	Board   struct {
		Incomplete struct {
			Rows []struct {
				Number int `json:"orderNumber"`
			} `json:"rows"`
		} `json:"incomplete"`
		Completed struct {
			Rows []struct {
				Number int `json:"orderNumber"`
			} `json:"rows"`
		} `json:"completed"`
	} `json:"board"`
}

// OrderLifecycleTestSuite прогоняет заказ через HTTP, клиент TheMealDB
// и доставку событий в Kafka (mock producer).
type OrderLifecycleTestSuite struct {
	suite.Suite

	mealDB       *httptest.Server
	mealDBStatus atomic.Int32
	mealDBBody   atomic.Value
	lastToken    atomic.Value

	producer   *mocks.SyncProducer
	eventsMu   sync.Mutex
	events     []domain.OrderEvent
	stopEvents context.CancelFunc
	eventsDone chan struct{}

	app    *httptest.Server
	client *http.Client
}

func (s *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	logger := baseLogger.WithField("component", "integration-test")

	s.events = nil
	s.mealDBStatus.Store(http.StatusOK)
	s.mealDBBody.Store(`{"meals":[{"idMeal":"1","strMeal":"Chicken Handi"},{"idMeal":"2","strMeal":"Chicken Congee"}]}`)
	s.mealDB = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.lastToken.Store(r.URL.Query().Get("i"))
		w.WriteHeader(int(s.mealDBStatus.Load()))
		_, _ = w.Write([]byte(s.mealDBBody.Load().(string)))
	}))

	reg := prometheus.NewRegistry()
	orderMetrics := metrics.NewOrderMetricsWithRegisterer(reg)

	s.producer = mocks.NewSyncProducer(s.T(), nil)
	dispatcher := outbox.NewDispatcher(
		kafka.NewProducerWithSyncProducer(s.producer, "", logger),
		outbox.WithMetrics(orderMetrics),
		outbox.WithLogger(logger),
		outbox.WithRetryBaseDelay(0),
	)
	ctx, cancel := context.WithCancel(context.Background())
	s.stopEvents = cancel
	s.eventsDone = make(chan struct{})
	go func() {
		defer close(s.eventsDone)
		dispatcher.Run(ctx)
	}()

	service := orders.NewService(
		memory.NewSessionStorage(time.Hour),
		mealdb.NewClient(
			mealdb.WithBaseURL(s.mealDB.URL),
			mealdb.WithHTTPClient(s.mealDB.Client()),
			mealdb.WithMetrics(orderMetrics),
			mealdb.WithLogger(logger),
		),
		orders.WithSelector(mealdb.FixedSelector(1)),
		orders.WithPublisher(dispatcher),
		orders.WithMetrics(orderMetrics),
		orders.WithLogger(logger),
	)

	pages, err := view.NewPageRenderer()
	s.Require().NoError(err)
	s.app = httptest.NewServer(httpapi.NewHandler(service, pages, logger, "integration").Router())

	jar, err := cookiejar.New(nil)
	s.Require().NoError(err)
	s.client = &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func (s *OrderLifecycleTestSuite) TearDownTest() {
	s.app.Close()
	s.stopEvents()
	<-s.eventsDone
	s.mealDB.Close()
	s.Require().NoError(s.producer.Close())
}

func (s *OrderLifecycleTestSuite) expectEvent() {
	s.producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		raw, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var event domain.OrderEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return err
		}
		s.eventsMu.Lock()
		s.events = append(s.events, event)
		s.eventsMu.Unlock()
		return nil
	})
}

func (s *OrderLifecycleTestSuite) publishedEvents() []domain.OrderEvent {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	return append([]domain.OrderEvent(nil), s.events...)
}

func (s *OrderLifecycleTestSuite) post(path string, form url.Values) (*http.Response, actionResponse) {
	req, err := http.NewRequest(http.MethodPost, s.app.URL+path, strings.NewReader(form.Encode()))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var body actionResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func (s *OrderLifecycleTestSuite) TestCreateCompleteClear() {
	s.expectEvent()
	s.expectEvent()
	s.expectEvent()

	resp, body := s.post("/orders", url.Values{"ingredient": {"  Chicken   Breast "}})
	s.Equal(http.StatusCreated, resp.StatusCode)
	s.Equal("chicken_breast", resp.Header.Get(httpapi.LookupTokenHeader))
	s.Equal("chicken_breast", s.lastToken.Load())
	s.Require().NotNil(body.Order)
	s.Equal(1, body.Order.Number)
	s.Equal("Chicken Congee", body.Order.Description)
	s.Len(body.Board.Incomplete.Rows, 1)

	resp, body = s.post("/orders/complete", url.Values{"orderNumber": {"1"}})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(string(domain.CompletionCompleted), body.Outcome)
	s.Empty(body.Board.Incomplete.Rows)
	s.Len(body.Board.Completed.Rows, 1)

	resp, body = s.post("/orders/clear", url.Values{"confirm": {"yes"}})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Empty(body.Board.Incomplete.Rows)
	s.Empty(body.Board.Completed.Rows)

	s.Eventually(func() bool { return len(s.publishedEvents()) == 3 }, 2*time.Second, 10*time.Millisecond)

	events := s.publishedEvents()
	s.Equal(domain.EventTypeOrderCreated, events[0].Type)
	s.Equal(domain.EventTypeOrderCompleted, events[1].Type)
	s.Equal(domain.EventTypeSessionCleared, events[2].Type)
	s.Equal(1, events[1].OrderNumber)
	s.NotEmpty(events[0].SessionID)
	s.Equal(events[0].SessionID, events[2].SessionID)
}

func (s *OrderLifecycleTestSuite) TestNumberingRestartsAfterClear() {
	for i := 0; i < 4; i++ {
		s.expectEvent()
	}

	_, body := s.post("/orders", url.Values{"ingredient": {"beef"}})
	s.Require().NotNil(body.Order)
	_, body = s.post("/orders", url.Values{"ingredient": {"beef"}})
	s.Require().NotNil(body.Order)
	s.Equal(2, body.Order.Number)

	s.post("/orders/clear", url.Values{"confirm": {"yes"}})

	_, body = s.post("/orders", url.Values{"ingredient": {"beef"}})
	s.Require().NotNil(body.Order)
	s.Equal(1, body.Order.Number)

	s.Eventually(func() bool { return len(s.publishedEvents()) == 4 }, 2*time.Second, 10*time.Millisecond)
}

func (s *OrderLifecycleTestSuite) TestLookupFailuresDoNotPublish() {
	s.mealDBBody.Store(`{"meals":null}`)
	resp, body := s.post("/orders", url.Values{"ingredient": {"unobtainium"}})
	s.Equal(http.StatusNotFound, resp.StatusCode)
	s.Nil(body.Order)

	s.mealDBStatus.Store(http.StatusInternalServerError)
	s.mealDBBody.Store(`{}`)
	resp, _ = s.post("/orders", url.Values{"ingredient": {"beef"}})
	s.Equal(http.StatusBadGateway, resp.StatusCode)

	resp, _ = s.post("/orders/complete", url.Values{"orderNumber": {"1"}})
	s.Equal(http.StatusNotFound, resp.StatusCode)

	s.Empty(s.publishedEvents())
}

func TestOrderLifecycleSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
