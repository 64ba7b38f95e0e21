package prom

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	xhttp "github.com/wasend/campaign-runner/pkg/http"
	"github.com/wasend/campaign-runner/pkg/logger"
)

const (
	SystemCampaigns = "campaign"
)

const (
	MetricDispatchAttempts  = "dispatch_attempts_total"
	MetricRunsFinished      = "runs_finished_total"
	MetricTargetsProcessed  = "targets_processed_total"
	MetricPersistenceErrors = "persistence_errors_total"
	MetricActiveRuns        = "active_runs"
)

var createLock = &sync.Mutex{}
var namespace = "none"

var MetricSystemEnabled = false

var counters = make(map[string]prometheus.Counter)
var counterVecs = make(map[string]*prometheus.CounterVec)
var gauges = make(map[string]prometheus.Gauge)

var defaultLabels prometheus.Labels

// Create registers every metric the runner emits. Until it is called all
// observe helpers are no-ops, so tests never touch the default registry.
func Create(host string, env string, nameSpace string) error {
	defaultLabels = make(prometheus.Labels)
	defaultLabels["env"] = env
	defaultLabels["instance"] = host
	namespace = nameSpace
	MetricSystemEnabled = true

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(createCounterVec(SystemCampaigns, MetricDispatchAttempts, []string{"strategy", "outcome"}))
	hasError(createCounterVec(SystemCampaigns, MetricRunsFinished, []string{"status"}))
	hasError(createCounterVec(SystemCampaigns, MetricTargetsProcessed, []string{"result"}))
	hasError(createCounter(SystemCampaigns, MetricPersistenceErrors))
	hasError(createGauge(SystemCampaigns, MetricActiveRuns))

	return err
}

func ListenAndServe(addr string, url string) {
	hh := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s := xhttp.CreateServer()
	s.GET(url, hh)
	logger.Info("[metrics-server] listening...", "addr", addr, "url", url)
	if err := s.ListenAndServe(addr); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}

// ObserveDispatchAttempt counts one strategy attempt by outcome.
func ObserveDispatchAttempt(strategy string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	IncCounterVec(SystemCampaigns, MetricDispatchAttempts, strategy, outcome)
}

// ObserveRunFinished counts one campaign reaching a terminal status.
func ObserveRunFinished(status string) {
	IncCounterVec(SystemCampaigns, MetricRunsFinished, status)
}

// ObserveTargetProcessed counts one recipient by result (sent, failed or
// invalid).
func ObserveTargetProcessed(result string) {
	IncCounterVec(SystemCampaigns, MetricTargetsProcessed, result)
}

func ObservePersistenceError() {
	IncCounter(SystemCampaigns, MetricPersistenceErrors)
}

func AddActiveRuns(delta float64) {
	AddGauge(SystemCampaigns, MetricActiveRuns, delta)
}

func createCounter(subsystem, name string) error {
	createLock.Lock()
	defer createLock.Unlock()
	counters[subsystem+name] = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        "",
		ConstLabels: defaultLabels,
	})
	return prometheus.Register(counters[subsystem+name])
}

func createCounterVec(subsystem, name string, labels []string) error {
	createLock.Lock()
	defer createLock.Unlock()
	counterVecs[subsystem+name] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        "",
		ConstLabels: defaultLabels,
	}, labels)
	return prometheus.Register(counterVecs[subsystem+name])
}

func createGauge(subsystem, name string) error {
	createLock.Lock()
	defer createLock.Unlock()
	gauges[subsystem+name] = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        "",
		ConstLabels: defaultLabels,
	})
	return prometheus.Register(gauges[subsystem+name])
}

func IncCounter(subsystem, name string) {
	AddCounter(subsystem, name, 1)
}

func AddCounter(subsystem, name string, number float64) {
	if MetricSystemEnabled == false {
		return
	}
	if v, ok := counters[subsystem+name]; ok {
		v.Add(number)
		return
	}
	logger.Warn("[metrics-server] counter not found", "subsystem", subsystem, "name", name)
}

func IncCounterVec(subsystem, name string, labelValues ...string) {
	AddCounterVec(subsystem, name, 1, labelValues...)
}

func AddCounterVec(subsystem, name string, num float64, labelValues ...string) {
	if MetricSystemEnabled == false {
		return
	}
	if v, ok := counterVecs[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func AddGauge(subsystem, name string, num float64) {
	if MetricSystemEnabled == false {
		return
	}
	if v, ok := gauges[subsystem+name]; ok {
		v.Add(num)
		return
	}
	logger.Warn("[metrics-server] gauge not found", "subsystem", subsystem, "name", name)
}
