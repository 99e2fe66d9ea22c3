package worker

// messageOperations drains the inbound queue, handing every message to the
// state. Any number of these run at the same time against the one queue.
func (w *Worker) messageOperations(id int) {
	w.evHandler("worker: messageOperations[%d]: G started", id)
	defer w.evHandler("worker: messageOperations[%d]: G completed", id)

	for {
		select {
		case env, open := <-w.cfg.Inbound:
			if !open {
				w.evHandler("worker: messageOperations[%d]: inbound channel closed", id)
				return
			}

			w.state.HandleMessage(env.Data, env.Peer)

		case <-w.shut:
			w.evHandler("worker: messageOperations[%d]: received shut signal", id)
			return
		}
	}
}
