package observability

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"
	MStockReserveRetries     MetricKey = "stock_reserve_retries_total"
	MCheckoutRejections      MetricKey = "checkout_rejections_total"
)

// CounterSpecs lists every counter the service registers at start-up.
var CounterSpecs = []Spec{
	{Key: MUsecaseRequests, Help: "Total number of use case invocations.", Labels: []string{"use_case", "outcome"}},
	{Key: MHTTPRequests, Help: "Total number of HTTP requests.", Labels: []string{"method", "route", "status"}},
	{Key: MExternalRequests, Help: "Total number of calls to external peers.", Labels: []string{"peer", "endpoint", "outcome"}},
	{Key: MStockReserveRetries, Help: "Optimistic stock update retries.", Labels: []string{"outcome"}},
	{Key: MCheckoutRejections, Help: "Checkouts rejected by reason.", Labels: []string{"reason"}},
}

// HistogramSpecs lists every histogram the service registers at start-up.
var HistogramSpecs = []Spec{
	{Key: MUsecaseDuration, Help: "Duration of use case execution in seconds.", Labels: []string{"use_case"}},
	{Key: MHTTPRequestDuration, Help: "Duration of HTTP requests in seconds.", Labels: []string{"method", "route", "status"}},
	{Key: MExternalRequestDuration, Help: "Duration of calls to external peers in seconds.", Labels: []string{"peer", "endpoint"}},
}
