// Package websocket pushes round lifecycle events to browser clients.
//
// A Hub owns the set of connected clients and fans out every published
// message. AnalysisService publishes an events.RoundSnapshot when an upload
// or an analysis run starts, completes or fails; the dashboard listens on
// /ws and refreshes the affected round.
//
// Each Client runs two goroutines: ReadPump drains the connection and keeps
// the read deadline alive, WritePump writes queued messages and pings the
// peer. A client whose buffer fills up is dropped rather than slowing the
// hub down.
//
// Message envelope:
//
//	{
//	  "type": "round:snapshot",
//	  "timestamp": "2024-06-01T10:00:00Z",
//	  "trace_id": "8f1c...",
//	  "data": {"project_id": "...", "round_id": "R1", "stage": "analysis", "status": "completed"}
//	}
package websocket
