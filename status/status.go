package status

//BatchStatus status of job or step execution
type BatchStatus string

const (
	//STARTING job or step execution is created but not yet running
	STARTING BatchStatus = "STARTING"
	//STARTED job or step is running
	STARTED BatchStatus = "STARTED"
	//STOPPING a stop request was issued and will be honoured at the next chunk boundary
	STOPPING BatchStatus = "STOPPING"
	//STOPPED job or step stopped on request
	STOPPED BatchStatus = "STOPPED"
	//COMPLETED job or step finished successfully
	COMPLETED BatchStatus = "COMPLETED"
	//FAILED job or step aborted on error
	FAILED BatchStatus = "FAILED"
	//UNKNOWN job or step ended abnormally and its state can not be trusted
	UNKNOWN BatchStatus = "UNKNOWN"
)

var severity = map[BatchStatus]int{
	STARTING:  0,
	STARTED:   1,
	STOPPING:  2,
	STOPPED:   3,
	COMPLETED: 4,
	FAILED:    5,
	UNKNOWN:   6,
}

// And combines two statuses, keeping the more severe one
func (s BatchStatus) And(other BatchStatus) BatchStatus {
	i1, ok1 := severity[s]
	i2, ok2 := severity[other]
	if ok1 && ok2 {
		if i1 < i2 {
			return other
		}
		return s
	} else if ok1 {
		return other
	}
	return s
}

// IsRunning reports whether an execution in this status may still be doing work
func (s BatchStatus) IsRunning() bool {
	return s == STARTING || s == STARTED || s == STOPPING
}

// IsRestartable reports whether an execution that ended in this status can be run again
func (s BatchStatus) IsRestartable() bool {
	return s == FAILED || s == STOPPED
}
