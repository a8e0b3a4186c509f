package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_messages_sent_total",
			Help: "Messages sent, by chat type",
		},
		[]string{"chat_type"},
	)

	messageMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_message_mutations_total",
			Help: "Message edits, deletes, reactions, pins and reads",
		},
		[]string{"op"},
	)

	chatsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_chats_created_total",
			Help: "Chat creation outcomes (created, reused)",
		},
		[]string{"chat_type", "outcome"},
	)

	indexBackfills = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messenger_index_backfills_total",
			Help: "User-chat index entries restored by the fallback listing",
		},
	)
)
