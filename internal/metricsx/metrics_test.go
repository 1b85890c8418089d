package metricsx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewRegistersBuildInfo(t *testing.T) {
	m := New("0.1.0", "go1.26.0")
	if m == nil || m.Registry == nil {
		t.Fatal("New returned a metrics instance with no registry")
	}

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var found bool
	for _, f := range families {
		if f.GetName() == "authdisco_info" {
			found = true
		}
	}
	if !found {
		t.Error("authdisco_info metric not registered")
	}
}

func TestMetricsIsolation(t *testing.T) {
	m1 := New("0.1.0", "go1.26.0")
	m2 := New("0.2.0", "go1.26.0")

	m1.DHTErrorsTotal.Inc()

	families, err := m2.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "authdisco_dht_errors_total" {
			for _, metric := range f.GetMetric() {
				if metric.GetCounter().GetValue() != 0 {
					t.Error("m2 registry saw m1's counter value; registries are not isolated")
				}
			}
		}
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	m := New("0.1.0", "go1.26.0")
	m.AuthoritiesTotal.Set(5)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	buf := make([]byte, 4096)
	n, _ := resp.Body.Read(buf)
	body := string(buf[:n])
	if !strings.Contains(body, "authdisco_authorities_total 5") {
		t.Errorf("metrics body missing authorities_total: %s", body)
	}
}
