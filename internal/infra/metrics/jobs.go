package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(chatJobsProcessedTotal, chatRecordsSweptTotal) }

var chatJobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_jobs_processed_total",
		Help: "Total number of background chat jobs processed, labeled by terminal status.",
	},
	[]string{"status"}, // 'completed', 'error'
)

var chatRecordsSweptTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "chat_records_swept_total",
		Help: "Terminal records removed by the best-effort sweep worker.",
	},
)

func IncChatJob(status string) {
	chatJobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func AddRecordsSwept(n int) { chatRecordsSweptTotal.Add(float64(n)) }
