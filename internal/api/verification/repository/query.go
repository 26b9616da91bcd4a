package verificationRepository

const (
	queryCreateRequest = `
		INSERT INTO verification_requests (
			id, id_front_verified, id_back_verified, video_verified,
			deepfake_state, created_at, updated_at
		) VALUES (
			:id, :id_front_verified, :id_back_verified, :video_verified,
			:deepfake_state, :created_at, :updated_at
		)`

	queryGetRequestByID = `
		SELECT id, id_front_verified, id_back_verified, video_verified,
		       deepfake_state, deepfake_real, deepfake_error,
		       deepfake_started_at, created_at, updated_at
		FROM verification_requests
		WHERE id = :id`

	querySetIDFrontVerified = `
		UPDATE verification_requests
		SET id_front_verified = :verified, updated_at = :updated_at
		WHERE id = :id`

	querySetIDBackVerified = `
		UPDATE verification_requests
		SET id_back_verified = :verified, updated_at = :updated_at
		WHERE id = :id`

	querySetVideoVerified = `
		UPDATE verification_requests
		SET video_verified = :verified, updated_at = :updated_at
		WHERE id = :id`

	querySetDeepfakeRunning = `
		UPDATE verification_requests
		SET deepfake_state = 'running', deepfake_real = NULL,
		    deepfake_error = NULL, deepfake_started_at = :started_at,
		    updated_at = :updated_at
		WHERE id = :id`

	querySetDeepfakeCompleted = `
		UPDATE verification_requests
		SET deepfake_state = 'completed', deepfake_real = :real,
		    deepfake_error = NULL, updated_at = :updated_at
		WHERE id = :id`

	querySetDeepfakeError = `
		UPDATE verification_requests
		SET deepfake_state = 'error', deepfake_error = :error,
		    updated_at = :updated_at
		WHERE id = :id`

	queryResetRequest = `
		UPDATE verification_requests
		SET id_front_verified = FALSE, id_back_verified = FALSE,
		    video_verified = FALSE, deepfake_state = 'missing',
		    deepfake_real = NULL, deepfake_error = NULL,
		    deepfake_started_at = NULL, updated_at = :updated_at
		WHERE id = :id`
)
