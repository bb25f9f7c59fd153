package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string        `json:"jsonrpc"`
		ID      interface{}   `json:"id"`
		Method  string        `json:"method"`
		Params  []interface{} `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, -32700, "Parse error", nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" {
		s.respondWithError(w, -32600, "Invalid Request", nil)
		return
	}

	// Route to appropriate handler
	var result interface{}
	var err error

	switch request.Method {
	case "optimization.start":
		result, err = s.rpcStart(request.Params)
	case "optimization.status":
		result, err = s.rpcStatus(request.Params)
	case "optimization.cancel":
		err = s.rpcCancel(request.Params)
	default:
		s.respondWithError(w, -32601, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.respondWithError(w, -32000, err.Error(), request.ID)
		return
	}

	// Send successful response
	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// rpcStart handles the optimization.start JSON-RPC method.
// Expected parameters: {"field": "sincos", "seed": [0.2, -2.1], "step_size": 1.0}
// Returns: {"optimization_id": "run_123", "status": "pending"}
func (s *Server) rpcStart(params []interface{}) (interface{}, error) {
	paramMap, err := firstParamObject(params)
	if err != nil {
		return nil, err
	}

	req := startRequest{}

	fieldName, ok := paramMap["field"].(string)
	if !ok || fieldName == "" {
		return nil, fmt.Errorf("field name is required")
	}
	req.Field = fieldName

	if rawSeed, present := paramMap["seed"]; present {
		seedList, ok := rawSeed.([]interface{})
		if !ok {
			return nil, fmt.Errorf("seed must be an array of numbers")
		}
		seed := make([]float64, len(seedList))
		for i, c := range seedList {
			value, ok := c.(float64)
			if !ok {
				return nil, fmt.Errorf("seed components must be numbers")
			}
			seed[i] = value
		}
		req.Seed = seed
	}

	if stepSize, present := paramMap["step_size"]; present {
		value, ok := stepSize.(float64)
		if !ok {
			return nil, fmt.Errorf("step_size must be a number")
		}
		req.StepSize = value
	}

	if maxIterations, present := paramMap["max_iterations"]; present {
		value, ok := maxIterations.(float64)
		if !ok {
			return nil, fmt.Errorf("max_iterations must be a number")
		}
		req.MaxIterations = int(value)
	}

	if gradLimit, present := paramMap["grad_limit"]; present {
		value, ok := gradLimit.(float64)
		if !ok {
			return nil, fmt.Errorf("grad_limit must be a number")
		}
		req.GradLimit = value
	}

	return s.startJob(req)
}

// rpcStatus handles the optimization.status JSON-RPC method.
// Expected parameters: {"optimization_id": "run_123"}
func (s *Server) rpcStatus(params []interface{}) (interface{}, error) {
	id, err := optimizationID(params)
	if err != nil {
		return nil, err
	}
	return s.jobStatus(id)
}

// rpcCancel handles the optimization.cancel JSON-RPC method.
// Expected parameters: {"optimization_id": "run_123"}
func (s *Server) rpcCancel(params []interface{}) error {
	id, err := optimizationID(params)
	if err != nil {
		return err
	}
	return s.cancelJob(id)
}

func firstParamObject(params []interface{}) (map[string]interface{}, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("missing required parameters")
	}
	paramMap, ok := params[0].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid parameter format, expected object")
	}
	return paramMap, nil
}

func optimizationID(params []interface{}) (string, error) {
	paramMap, err := firstParamObject(params)
	if err != nil {
		return "", err
	}
	id, ok := paramMap["optimization_id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("optimization_id is required")
	}
	return id, nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  code,
		"message": message,
	})

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
