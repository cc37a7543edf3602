package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/rl1809/allocation/internal/adapter/handler"
)

func main() {
	addr := flag.String("addr", "localhost:50051", "allocation gRPC address")
	stock := flag.Int("stock", 20, "units in the batch")
	totalRequests := flag.Int("requests", 50, "concurrent single-unit allocations")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to dial %s: %v", *addr, err)
	}
	defer conn.Close()
	client := handler.NewAllocationClient(conn)

	// Fresh sku per run so earlier data never interferes
	run := uuid.NewString()[:8]
	sku := "STRESS-" + run
	batchRef := "stress-batch-" + run
	if _, err := client.AddBatch(ctx, &handler.AddBatchRequest{Ref: batchRef, Sku: sku, Qty: *stock}); err != nil {
		log.Fatalf("failed to add batch: %v", err)
	}

	// Counters
	var (
		successCount  atomic.Int32
		conflictCount atomic.Int32
		failCount     atomic.Int32
	)

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			_, err := client.Allocate(ctx, &handler.AllocateRequest{
				OrderID: fmt.Sprintf("order-%s-%d", run, n),
				Sku:     sku,
				Qty:     1,
			})
			switch status.Code(err) {
			case codes.OK:
				successCount.Add(1)
			case codes.Aborted:
				conflictCount.Add(1)
			default:
				failCount.Add(1)
				log.Printf("order %d: %v", n, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Every order that got through is either in the read model or was out of stock
	allocated := 0
	for i := 0; i < *totalRequests; i++ {
		resp, err := client.Allocations(ctx, &handler.AllocationsRequest{OrderID: fmt.Sprintf("order-%s-%d", run, i)})
		if status.Code(err) == codes.NotFound {
			continue
		}
		if err != nil {
			log.Fatalf("failed to read allocations: %v", err)
		}
		allocated += len(resp.Allocations)
	}

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Batch Stock:      %d\n", *stock)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Committed:        %d\n", successCount.Load())
	fmt.Printf("Conflicts:        %d\n", conflictCount.Load())
	fmt.Printf("Failed:           %d\n", failCount.Load())
	fmt.Printf("Allocated:        %d\n", allocated)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	want := min(*stock, int(successCount.Load()))
	if allocated == want {
		fmt.Printf("PASS: %d allocations, batch never oversold\n", allocated)
	} else {
		fmt.Printf("FAIL: expected %d allocations, got %d\n", want, allocated)
	}
}
